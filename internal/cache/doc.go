// Package cache provides the result cache that keeps recent website crawls
// for five minutes.
//
// Two implementations are provided: Memory, a mutex-guarded LRU
// (github.com/golang/groupcache/lru) with lazy expiry on read, and Redis,
// which lets several contactscan servers share results.
package cache
