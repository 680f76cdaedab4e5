package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"logtap/internal/event"
)

const remoteUserAgent = "logtap/0.1.0"

// wireEvent is the JSON shape expected by the ingestion service. The
// message template travels unrendered; properties keep insertion order.
type wireEvent struct {
	Timestamp       string           `json:"Timestamp"`
	Level           string           `json:"Level"`
	MessageTemplate string           `json:"MessageTemplate"`
	Properties      event.Properties `json:"Properties"`
	Exception       string           `json:"Exception,omitempty"`
}

// Remote posts event batches as a JSON array to an HTTP ingestion endpoint.
// Any 2xx response is success; everything else is an error for the worker's
// retry policy.
type Remote struct {
	name     string
	endpoint string
	client   *http.Client
}

// NewRemote builds a remote sink. A nil client gets a 10 second timeout
// default.
func NewRemote(name, endpoint string, client *http.Client) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Remote{name: name, endpoint: endpoint, client: client}
}

func (r *Remote) Name() string { return r.name }

func (r *Remote) Deliver(ctx context.Context, batch []event.Event) error {
	body, err := EncodeBatch(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", remoteUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post batch: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ingestion endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (r *Remote) Close() error {
	r.client.CloseIdleConnections()
	return nil
}

// EncodeBatch serializes a batch into the wire format: a JSON array of
// event objects with RFC3339 UTC timestamps and stringified exceptions.
func EncodeBatch(batch []event.Event) ([]byte, error) {
	wire := make([]wireEvent, len(batch))
	for i, e := range batch {
		wire[i] = wireEvent{
			Timestamp:       e.Timestamp.UTC().Format(time.RFC3339Nano),
			Level:           e.Level.String(),
			MessageTemplate: e.MessageTemplate,
			Properties:      e.Properties,
			Exception:       e.Exception.String(),
		}
	}
	return json.Marshal(wire)
}
