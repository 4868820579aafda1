// Package store defines the persistence interfaces consumed by the queue
// and worker layers, along with shared database plumbing (transaction
// helper, sentinel errors). Concrete implementations live in
// internal/platform/postgres and internal/store/memstore.
package store
