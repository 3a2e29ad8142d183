// Package queue provides the bounded hand-off used between pipeline stages.
//
// Bounded is a generic FIFO with a fixed capacity guarded by a single monitor
// (one mutex, two condition variables). It supplies backpressure: a producer
// pushing into a full queue blocks until a consumer pops, so a slow stage
// throttles the stages before it instead of growing memory.
//
// Blocking Contracts:
//   - Push blocks while full and open; fails immediately once closed.
//   - Pop blocks while empty and open; returns buffered items even after
//     Close, then ErrClosed once drained.
//   - Close wakes every blocked Push and Pop.
//
// Example Usage:
//
//	q := queue.New[*record.Record](128)
//	go func() {
//		defer q.Close()
//		for rec := range records {
//			if !q.Push(rec) {
//				return
//			}
//		}
//	}()
//	for {
//		rec, err := q.Pop()
//		if errors.Is(err, queue.ErrClosed) {
//			break
//		}
//		handle(rec)
//	}
package queue
