package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// defaultTLSPort is assumed for redirect locations without an explicit
// port.
const defaultTLSPort = 443

// parseRedirectLocation resolves a blob-store redirect target. Locations
// are pre-signed storage URLs, so only https with an optional numeric
// port is accepted; no general URL parsing happens here.
func parseRedirectLocation(location string) (string, error) {
	const scheme = "https://"
	if !strings.HasPrefix(location, scheme) {
		return "", errors.Errorf("failed to find expected token '%s' in redirect url", scheme)
	}

	rest := strings.TrimPrefix(location, scheme)
	hostport := rest
	var path string
	if i := strings.Index(rest, "/"); i >= 0 {
		hostport, path = rest[:i], rest[i:]
	}

	host := hostport
	port := defaultTLSPort
	if parts := strings.Split(hostport, ":"); len(parts) == 2 {
		p, err := strconv.ParseUint(parts[1], 10, 16)
		if err != nil {
			return "", errors.Wrapf(err, "failed to parse port in '%s'", location)
		}
		host, port = parts[0], int(p)
	}

	return fmt.Sprintf("%s%s:%d%s", scheme, host, port, path), nil
}
