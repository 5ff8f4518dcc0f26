package extract

import (
	"regexp"
	"strings"

	"github.com/nao1215/contactscan/internal/model"
)

var (
	// emailPattern matches localpart@domain.tld with a TLD of two or more letters.
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// roleAccountPattern rejects management, booking and placeholder addresses.
	roleAccountPattern = regexp.MustCompile(
		`(?i)agency|management|entertainment|talent|mgmt|booking|press|domain\.com|example|sentry|teamwass`)

	// fileExtensionPattern rejects file names that look like addresses,
	// e.g. "logo@2x.png" in minified markup.
	fileExtensionPattern = regexp.MustCompile(`(?i)\.(?:jpe?g|png|svg|gif|tga|bmp|zip|pdf|webp)$`)
)

// Emails returns the distinct, lower-cased addresses found in text, in
// first-seen order. Role accounts, placeholders and file names are dropped.
func Emails(text string) []string {
	matches := emailPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	emails := make([]string, 0, len(matches))
	for _, m := range matches {
		email := strings.ToLower(m)
		if seen[email] || !IsCandidateEmail(email) {
			continue
		}
		seen[email] = true
		emails = append(emails, email)
	}

	if len(emails) == 0 {
		return nil
	}
	return emails
}

// IsCandidateEmail reports whether an email-shaped token survives the
// role-account and file-extension blacklists.
func IsCandidateEmail(email string) bool {
	return !roleAccountPattern.MatchString(email) && !fileExtensionPattern.MatchString(email)
}

// JoinEmails renders addresses the way ContactRecord stores them.
func JoinEmails(emails []string) string {
	return model.JoinEmails(emails)
}
