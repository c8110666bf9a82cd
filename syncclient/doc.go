// Package syncclient exposes the sync core to applications as one typed
// facade per entity type.
//
// Reads go through the query cache, keyed by the owner carried in the
// context (see package identity), and fall through to a Loader that turns
// each query kind into one store call:
//
//	workouts: list, date range, recent, templates
//	goals:    list, active, overdue
//	routines: list, most used, public
//	bmi:      history, latest, date range
//
// Writes are mutation operations handed to the coordinator, so every one
// of them is applied optimistically and either invalidated or rolled
// back once the store answers.
package syncclient
