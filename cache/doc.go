// Package cache implements the query cache of the sync core.
//
// # Overview
//
// QueryCache holds the results of remote queries, addressed by QueryKey
// (entity type, query kind and scope parameters). Reads are read-through:
//
//  1. Serialize the key and look the entry up
//  2. If now < StaleAfter, return a copy of the cached value
//  3. Otherwise call the Loader, store the result with StaleAfter = now + window
//  4. Return the fetched value
//
// The staleness window comes from StalenessTable, an explicit table of
// (entity, kind) pairs; DefaultStaleness ranges from one minute for
// date-range and recent queries to fifteen minutes for public routine
// discovery. PollPolicy and Poller add a fixed-interval refetch for one
// kind (overdue goals) on top of normal staleness.
//
// # Writes
//
// Only the mutation coordinator writes outside of fetch completion:
//
//   - ApplyOptimistic snapshots the entries it is about to replace and writes the optimistic values
//   - Restore puts a snapshot back verbatim
//   - Invalidate marks matching entries stale
//
// Each of these bumps the slot generation and cancels in-flight fetches
// for the slot. A fetch that completes under a newer generation is
// discarded rather than stored.
//
// # Storage
//
// Entries live in an EntryStore. NewEntryStore returns the sturdyc-backed
// store from internal/cacheinfra; Config.Retention bounds how long sturdyc
// keeps an entry at all and should exceed the longest staleness window.
//
// # Keys
//
// The default KeySerializer writes keys as entity::kind::name=value
// segments, for example:
//
//	workouts::date_range::owner=u-1::from=2024-05-01::to=2024-05-31
package cache
