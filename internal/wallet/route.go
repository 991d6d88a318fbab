package wallet

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"github.com/ligun0805/wethcycle/internal/chain"
)

var ErrBadRoute = errors.New("unsupported proxy route")

// parseRoute accepts socks5://, socks5h://, http:// and https:// URLs. A bare
// host:port (optionally user:pass@host:port) is taken as an HTTP proxy.
func parseRoute(route string) (*url.URL, error) {
	route = strings.TrimSpace(route)
	if !strings.Contains(route, "://") {
		route = "http://" + route
	}
	u, err := url.Parse(route)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRoute, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrBadRoute)
	}
	switch u.Scheme {
	case "socks5", "socks5h", "http", "https":
		return u, nil
	}
	return nil, fmt.Errorf("%w: scheme %q", ErrBadRoute, u.Scheme)
}

// RouteLabel renders a route for display with any password redacted.
func RouteLabel(route string) string {
	if strings.TrimSpace(route) == "" {
		return "direct"
	}
	u, err := parseRoute(route)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}

// HTTPClientForRoute builds the HTTP client an account's RPC traffic goes through.
// An empty route is a direct connection.
func HTTPClientForRoute(route string, timeout time.Duration) (*http.Client, error) {
	transport := chain.NewTransport()
	if strings.TrimSpace(route) == "" {
		return chain.NewHTTPClient(transport, timeout), nil
	}

	u, err := parseRoute(route)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("%w: socks5 dialer has no context support", ErrBadRoute)
		}
		transport.DialContext = cd.DialContext
	default:
		transport.Proxy = http.ProxyURL(u)
	}
	return chain.NewHTTPClient(transport, timeout), nil
}
