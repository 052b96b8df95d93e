// Package store is the local cache: named collections of JSON documents kept
// in one SQLite file (modernc.org/sqlite, no cgo).
//
// Every logical write (insert, upsert, update, truncate) is a single SQLite
// statement or transaction, so an interrupted process never leaves a
// half-applied write behind. Collections are loaded into memory on first use
// and queried with composable predicates:
//
//	users, _ := st.Collection(store.Users)
//	fresh := store.Where("steam_id").Eq(id).And(store.FreshSince("timestamp", now, ttl))
//	if !users.Contains(fresh) {
//	    _, err = users.Upsert(ctx, store.Document{"steam_id": id, "timestamp": now.Unix()}, store.Where("steam_id").Eq(id))
//	}
//
// Upsert merges: fields in the new document win and absent fields are kept.
package store
