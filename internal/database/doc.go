// Package database provides SQLite-based storage for contactscan.
//
// ContactDB stores:
//   - the history of resolved lookups (it implements engine.History)
//   - the daily lookup counters of CLI sessions (SessionQuota implements
//     governor.DailyQuota)
//
// The driver is modernc.org/sqlite, so the binary stays CGO-free and the
// database is a single file in the user's data directory.
package database
