// Package sink externalizes QC results popped by the commit stage.
//
// Every Sink is written to by a single goroutine. Close flushes buffered
// output and is called once, after the last Write.
package sink
