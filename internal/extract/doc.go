// Package extract finds contact signals in already-fetched text.
//
// It provides:
//   - Emails: email-shaped tokens, filtered against role-account and
//     file-name blacklists, lower-cased and deduplicated
//   - SocialLink: a profile link on a given service, preferring page metadata
//   - TrackingLink: the first link-in-bio tracking page URL
//   - Document: a parsed HTML page exposing the above plus same-page links
//
// Nothing in this package performs I/O. All matching is case-insensitive.
package extract
