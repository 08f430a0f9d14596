package server

import "net/url"

type builtinOrigin struct {
	scheme  string
	host    string
	portAny bool
}

var builtinOrigins = []builtinOrigin{
	{scheme: "http", host: "localhost", portAny: true},
	{scheme: "http", host: "127.0.0.1", portAny: true},
	{scheme: "http", host: "[::1]", portAny: true},
}

func isBuiltinOrigin(u *url.URL) bool {
	if u == nil {
		return false
	}
	hostname := u.Hostname()
	port := u.Port()
	for _, b := range builtinOrigins {
		if u.Scheme != b.scheme {
			continue
		}
		if hostname != b.host && "["+hostname+"]" != b.host {
			continue
		}
		if !b.portAny && port != "" {
			continue
		}
		return true
	}
	return false
}

// originChecker builds the Origin validation function for WebSocket upgrades.
// Loopback origins are always accepted; the dev server origin is accepted
// when dev mode is active.
func originChecker(devOrigin string) func(string) bool {
	return func(raw string) bool {
		u, err := url.Parse(raw)
		if err != nil {
			return false
		}
		if isBuiltinOrigin(u) {
			return true
		}
		if devOrigin == "" {
			return false
		}
		allowed, err := url.Parse(devOrigin)
		if err != nil {
			return false
		}
		return u.Scheme == allowed.Scheme && u.Host == allowed.Host
	}
}
