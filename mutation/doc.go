// Package mutation implements the optimistic write protocol of the sync
// core.
//
// A mutation is one of the Operation variants (Create, Update, Delete,
// ProgressUpdate, UsageIncrement). Coordinator.Mutate dispatches it to the
// handler registered for its kind and walks the lifecycle:
//
//	Idle -> Applying -> Calling -> Succeeded -> Idle
//	                           \-> Failed    -> Idle
//
// While Applying the coordinator snapshots every cache entry it is about
// to replace, then writes the optimistic values. While Calling the store
// is invoked. On success the invalidation router's pattern set for the
// (entity, operation) pair is marked stale; on failure the snapshot is
// restored verbatim.
//
// Missing owner identity, invalid arguments and unknown records are
// reported before Applying and leave the cache untouched.
//
// By default mutations of the same (entity type, owner) scope are queued.
// With Options.SerializeSameKey off they interleave freely, and a rollback
// can discard the optimistic value of another mutation still in flight.
package mutation
