// Package jobs wires the five SolShare queues to their processors.
//
// The queue set is closed: ai-analysis, embedding, notification, feed-refresh
// and sync-chain. Each queue accepts exactly one Payload type and is served by
// exactly one processor. Producers go through Registry.Enqueue, which rejects
// unknown queues, mismatched payloads and out-of-range discriminants before
// anything reaches the broker.
//
// Processors return a Result instead of an error. Applied results may declare
// follow-up jobs, which the registry enqueues only after the processor has
// returned. NoOp results complete the job without side effects and are logged
// as "job skipped". Transient results are handed back to the queue for retry
// with exponential backoff; a job that runs out of attempts is moved to the
// dead letter queue and reported to the DeadLetterSink.
//
// Delivery is at-least-once, so every processor is idempotent: re-running a
// job leaves the store, the cache and the vector index in the same state.
package jobs
