// Package queue owns the mux job set: the in-memory Manager that is the single
// authority for job state and order, the observer contract used to fan out
// changes, and the SQLite Store that mirrors jobs across restarts.
//
// The Manager serializes every mutation behind one mutex and notifies
// observers outside that lock with cloned jobs. Persistence is a durability
// aid rather than a correctness requirement: store failures surface as
// ErrPersistence, are logged, and the Manager keeps operating in memory.
//
// The database holds transient work items. When schemaVersion changes the
// existing file is copied to <db>.v<N>.bak and an empty schema is created in
// its place; there are no in-place migrations.
package queue
