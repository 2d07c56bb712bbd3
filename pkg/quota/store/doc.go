// Package store provides quota.Store backends.
//
// # Backends
//
//   - memory: in-process map, for tests and single-instance development
//   - sqlite: file-backed, single instance, via modernc.org/sqlite
//   - postgres: shared relational store via pgx
//   - redis: shared store using an atomic Lua script
//   - dynamodb: managed key-value store using a conditional UpdateItem
//
// Every backend performs the conditional increment as one storage-level
// operation. Backends without native expiry implement quota.Expirer and are
// swept periodically by a Sweeper.
//
// # Usage
//
//	st, err := store.New(ctx, store.Config{Backend: "sqlite", SQLite: store.SQLiteConfig{Path: "quota.db"}})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
package store
