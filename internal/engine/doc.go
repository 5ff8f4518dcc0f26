// Package engine is the contact discovery engine.
//
// Engine.Resolve turns a primary-source profile into a ContactRecord. It
// reads what the profile already declares and, only when something is
// missing, crawls the declared website:
//
//	profile -> cache -> governor -> crawler -> merge -> cache
//
// Concurrent lookups of the same website share one crawl. ResolveBatch
// runs many lookups with bounded concurrency.
package engine
