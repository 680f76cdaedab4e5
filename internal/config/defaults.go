package config

const (
	defaultMinimumLevel       = "Information"
	defaultEnvironment        = "development"
	defaultDiagnosticCapacity = 256
	defaultBufferCapacity     = 1024
	defaultBatchSize          = 100
	defaultBatchTimeoutMS     = 2000
	defaultOverflow           = "drop-newest"
	defaultRetryMaxAttempts   = 3
	defaultRetryBaseDelayMS   = 100
	defaultRetryMaxDelayMS    = 5000
	defaultRelayBind          = "127.0.0.1:8740"
	defaultCorrelationHeader  = "X-Correlation-ID"
	defaultRelayLockPath      = "~/.local/state/logtap/logtap.lock"
	defaultRelayLogLevel      = "info"
)

// Default returns a Config populated with repository defaults: a single
// console sink and no remote delivery.
func Default() Config {
	return Config{
		Pipeline: Pipeline{
			DefaultMinimumLevel: defaultMinimumLevel,
			SensitiveKeys:       []string{"password", "credit-card", "ssn", "token", "secret"},
			Environment:         defaultEnvironment,
			DiagnosticCapacity:  defaultDiagnosticCapacity,
		},
		Relay: Relay{
			Bind:              defaultRelayBind,
			CorrelationHeader: defaultCorrelationHeader,
			LockPath:          defaultRelayLockPath,
			LogLevel:          defaultRelayLogLevel,
		},
		Sinks: []Sink{
			{
				Name:         "console",
				Kind:         "console",
				MinimumLevel: defaultMinimumLevel,
			},
		},
	}
}
