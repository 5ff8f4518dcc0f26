package model

import "strings"

// SocialProfile is one declared link on the primary-source profile.
type SocialProfile struct {
	// Service is the upstream service label, e.g. "instagram".
	Service string `json:"service" yaml:"service"`

	// URL is the profile URL on that service.
	URL string `json:"url" yaml:"url"`

	// Username is the handle on that service, when the upstream reports one.
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
}

// Profile is the primary-source profile a lookup starts from.
// It is supplied by an upstream API and is never fetched by this module.
type Profile struct {
	// DisplayName is the person's display name. It is informational only.
	DisplayName string `json:"displayName" yaml:"displayName"`

	// BioText is free text scanned for emails and tracking links.
	BioText string `json:"bio,omitempty" yaml:"bio,omitempty"`

	// DeclaredWebsite is the website the person lists, possibly without scheme.
	DeclaredWebsite string `json:"website,omitempty" yaml:"website,omitempty"`

	// SocialProfiles are the declared links on other services.
	SocialProfiles []SocialProfile `json:"socialProfiles,omitempty" yaml:"socialProfiles,omitempty"`
}

// Social returns the first declared profile with a URL whose service
// name contains marker. Matching is case-insensitive.
func (p Profile) Social(marker string) (SocialProfile, bool) {
	marker = strings.ToLower(marker)
	for _, sp := range p.SocialProfiles {
		if sp.URL == "" {
			continue
		}
		if strings.Contains(strings.ToLower(sp.Service), marker) {
			return sp, true
		}
	}
	return SocialProfile{}, false
}

// IsBlank reports whether p carries nothing a lookup could use.
func (p Profile) IsBlank() bool {
	return strings.TrimSpace(p.DisplayName) == "" &&
		strings.TrimSpace(p.BioText) == "" &&
		strings.TrimSpace(p.DeclaredWebsite) == "" &&
		len(p.SocialProfiles) == 0
}

// InstagramProfile turns a URL or a handle, with or without "@", into a
// declared Instagram profile. It returns false for an empty value.
func InstagramProfile(value string) (SocialProfile, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return SocialProfile{}, false
	}
	if strings.Contains(value, "/") {
		return SocialProfile{Service: "instagram", URL: value}, true
	}
	username := strings.TrimPrefix(value, "@")
	return SocialProfile{
		Service:  "instagram",
		URL:      "https://instagram.com/" + username,
		Username: username,
	}, true
}
