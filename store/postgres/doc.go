// Package postgres implements store.Store on PostgreSQL via the Bun ORM.
//
// Schema management uses embedded SQL migration files applied in
// lexical order and tracked in a marketalert_migrations table. The
// caller owns the *bun.DB lifecycle; the Store never closes it.
package postgres
