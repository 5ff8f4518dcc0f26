// Package server exposes contact lookups over HTTP.
//
// Routes:
//
//	GET  /api/contacts        profile from the name, bio, website and instagram query parameters
//	POST /api/contacts        profile as a JSON body
//	POST /api/contacts/batch  {"profiles": [...]}
//	GET  /healthz
//
// The minute window is keyed by client address (see DefaultKeyFunc). The
// daily counter travels with the client, either in a sealed dailyCount
// cookie or, with RedisSessionQuota, in Redis under a session cookie.
// A rate rejection answers 429 with {"error": ..., "window": "minute"|"day"}.
package server
