package security

import (
	"fmt"
	"net"
	"net/url"
)

// ValidateEndpointURL checks that an operator-configured endpoint is a
// plausible http(s) URL before the server starts dialing it. Loopback is
// fine (the advisory classifier usually runs as a localhost sidecar);
// what gets rejected is anything that cannot be dialed at all.
func ValidateEndpointURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https")
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("URL must have a host")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsUnspecified() || ip.IsMulticast() {
			return fmt.Errorf("URL host %q is not dialable", host)
		}
	}
	if port := u.Port(); port != "" {
		if _, err := net.LookupPort("tcp", port); err != nil {
			return fmt.Errorf("invalid port %q", port)
		}
	}
	return nil
}
