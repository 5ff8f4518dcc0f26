// Package main provides the entry point for the contactscan CLI.
//
// contactscan turns a public creator profile into contact details: a
// website, an Instagram profile, email addresses and a tracking link. When
// the profile itself has no email, the declared website is crawled.
//
// Usage:
//
//	contactscan resolve --name "Jane" --website jane.example
//	contactscan resolve --file profiles.yaml
//	contactscan serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
