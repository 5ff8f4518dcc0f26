package model

import "strings"

// EmailSeparator joins multiple addresses in ContactRecord.Email.
const EmailSeparator = "; "

// ContactRecord is the unified contact information for one person.
// An empty field means "not found", never an error.
type ContactRecord struct {
	// Website is the person's own website (declared or crawled root).
	Website string `json:"website,omitempty" yaml:"website,omitempty"`

	// Instagram is the Instagram profile URL.
	Instagram string `json:"instagram,omitempty" yaml:"instagram,omitempty"`

	// Email holds one or more addresses joined by EmailSeparator.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// TrackLink is the link-in-bio tracking page URL.
	TrackLink string `json:"trackLink,omitempty" yaml:"trackLink,omitempty"`
}

// Emails returns the individual addresses stored in Email.
func (r ContactRecord) Emails() []string {
	if strings.TrimSpace(r.Email) == "" {
		return nil
	}
	parts := strings.Split(r.Email, ";")
	emails := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			emails = append(emails, p)
		}
	}
	return emails
}

// IsComplete reports whether the social link, email and tracking link are
// all present. A complete record never needs a website crawl.
func (r ContactRecord) IsComplete() bool {
	return r.Instagram != "" && r.Email != "" && r.TrackLink != ""
}

// IsEmpty reports whether no field is set.
func (r ContactRecord) IsEmpty() bool {
	return r.Website == "" && r.Instagram == "" && r.Email == "" && r.TrackLink == ""
}

// Merge fills the gaps of r with values from fallback.
// Fields already set on r win. Emails are the exception: addresses from
// both records are concatenated, r's first, with duplicates dropped.
func (r ContactRecord) Merge(fallback ContactRecord) ContactRecord {
	merged := r
	if merged.Website == "" {
		merged.Website = fallback.Website
	}
	if merged.Instagram == "" {
		merged.Instagram = fallback.Instagram
	}
	if merged.TrackLink == "" {
		merged.TrackLink = fallback.TrackLink
	}
	merged.Email = JoinEmails(append(r.Emails(), fallback.Emails()...))
	return merged
}

// JoinEmails joins addresses with EmailSeparator, dropping empty values and
// case-insensitive duplicates while keeping first-seen order.
func JoinEmails(emails []string) string {
	seen := make(map[string]bool, len(emails))
	kept := make([]string, 0, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, e)
	}
	return strings.Join(kept, EmailSeparator)
}
