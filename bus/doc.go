// Package bus implements the central message router: agent registry, topic
// subscriptions, asynchronous delivery with accounting, a bounded delivery
// history, and the drain pass that executes agent logic.
//
// Publish only enqueues and never blocks. A single worker goroutine pops the
// queue and delivers; agent handlers run synchronously inside Drain, which an
// external driver calls. The registry lock is never held while agent logic
// runs, so handlers may publish freely.
package bus
