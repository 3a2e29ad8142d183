// Package pipeline wires the ingest, worker and commit stages together.
//
//	Ingestor -> raw queue (one per worker) -> worker: Demultiplexer(filter, QC stage)
//	         -> result queue -> commit: Sink
//
// Records are sharded to workers by stream key, so every key is owned by one
// worker and keeps its feed order. Shutdown is cooperative: when the source
// ends or the context is cancelled the raw queues are closed, each worker
// drains its queue and flushes its demultiplexer, then the result queue is
// closed and the commit stage drains it and closes the sink.
package pipeline
