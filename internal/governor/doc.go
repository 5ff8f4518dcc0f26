// Package governor implements admission control for website crawls.
//
// Each lookup that would crawl a website must first pass Admit. Two limits
// apply, with different identity scopes:
//   - a per-client window (default 15 lookups per minute), keyed by the
//     caller's network identity and stored in a WindowStore
//   - a per-session daily cap (default 100 lookups), stored in a DailyQuota
//     owned by the caller's session
//
// Window stores exist for a single process (MemoryWindowStore) and for a
// fleet sharing Redis (RedisWindowStore).
package governor
