// Package task manages background job queuing, processing, and lifecycle.
// Callers enqueue named tasks into a durable Queue and return immediately;
// a single Consumer goroutine, owned by a Manager, claims tasks in FIFO
// order, dispatches them through a Registry and records each outcome back
// into the queue. Tasks survive process restarts because the Queue is
// backed by a persistent Store.
package task
