// Package entity defines the records synchronized between the local query
// cache and the remote store: workouts, goals, routines and BMI entries.
//
// Each entity embeds Base (id, owner, timestamps) and carries bun tags so
// the same structs can be persisted by a SQL-backed store. Updates are
// expressed with explicit per-entity patch types; DecodePatch rejects any
// field outside that set instead of merging it blindly.
//
// The goal progress rule lives here because it is the one piece of domain
// math the optimistic write path must reproduce:
//
//	pct := ProgressPercentage(newValue, goal.TargetValue) // min(round(v/t*100), 100)
//
// Reaching 100% moves the goal to completed and stamps CompletedAt once.
package entity
