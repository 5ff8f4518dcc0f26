package server

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the client key used for the minute window.
type KeyFunc func(r *http.Request) string

// DefaultKeyFunc returns a KeyFunc that uses, in order: the value of
// keyHeader, the first X-Forwarded-For address (when trustXFF is set) and
// the host of RemoteAddr. It returns "unknown" when all are empty.
func DefaultKeyFunc(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}
