package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ErrInvalidProxy is returned when a proxy URL is not of the form
// scheme://host:port with a socks5, http or https scheme.
var ErrInvalidProxy = errors.New("invalid proxy URL: expected socks5://, http:// or https:// with host:port")

// NewProxyTransport returns a transport that sends every request through
// proxyURL. socks5:// and socks5h:// dial through a SOCKS5 proxy, with
// optional user:password credentials; http:// and https:// use an HTTP
// proxy. fetchTimeout bounds the wait for response headers; a
// non-positive value means DefaultFetchTimeout.
func NewProxyTransport(proxyURL string, fetchTimeout time.Duration) (*http.Transport, error) {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Hostname() == "" || u.Port() == "" {
		return nil, ErrInvalidProxy
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	// Every fetch of a crawl goes to the same origin, so a small pool is enough.
	t := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: fetchTimeout,
	}

	switch u.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			password, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			t.DialContext = cd.DialContext
		} else {
			t.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	case "http", "https":
		t.Proxy = http.ProxyURL(u)
	default:
		return nil, ErrInvalidProxy
	}

	return t, nil
}
