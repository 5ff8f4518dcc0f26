// Package model defines the core data structures used throughout contactscan.
//
// This package contains the following main types:
//   - Profile: The primary-source profile supplied by the caller
//   - ContactRecord: The unified contact result (website, instagram, email, track link)
//   - CrawlTarget: The validated root URL and origin of a website crawl
//   - Page: A single fetched page
//
// It also defines the error taxonomy shared by the engine packages:
// ErrInvalidTarget, FetchError and RateExceededError.
//
// Models live in their own package so that extract, crawler, cache,
// governor and engine can share them without import cycles.
package model
