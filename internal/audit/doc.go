// Package audit defines the activity log record, the synchronous [Sink]
// contract, and an async [Dispatcher] used to mirror records to best-effort
// consumers.
//
// # Architecture boundaries
//
// This package does not decide which records to write; the engine does. The
// engine writes to its primary Sink inline, before the response, and may
// additionally hand the same record to a Dispatcher.
package audit
