// Package relay hosts the pipeline behind a small HTTP ingest API.
//
// POST /ingest accepts one JSON event or an array of them and emits each
// through the pipeline; every request runs under the correlation
// middleware, so ingested events carry the request's correlation
// identifier. GET /healthz and GET /stats expose liveness and the
// diagnostic counters.
package relay
