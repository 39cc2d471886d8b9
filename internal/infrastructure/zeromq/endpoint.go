package zeromq

import (
	"fmt"
	"strings"
)

var transports = []string{"tcp://", "ipc://", "inproc://"}

// NormalizeEndpoint validates endpoint and rewrites a wildcard TCP host
// ("tcp://*:5556") to the IPv4 any-address.
func NormalizeEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)

	scheme := ""
	for _, t := range transports {
		if strings.HasPrefix(endpoint, t) {
			scheme = t
			break
		}
	}
	if scheme == "" {
		return "", fmt.Errorf("%w: %q: unsupported transport", ErrInvalidEndpoint, endpoint)
	}

	rest := strings.TrimPrefix(endpoint, scheme)
	if rest == "" {
		return "", fmt.Errorf("%w: %q: missing address", ErrInvalidEndpoint, endpoint)
	}

	if scheme == "tcp://" {
		i := strings.LastIndex(rest, ":")
		if i < 0 || i == len(rest)-1 {
			return "", fmt.Errorf("%w: %q: missing port", ErrInvalidEndpoint, endpoint)
		}
		host, port := rest[:i], rest[i+1:]
		if host == "*" {
			rest = "0.0.0.0:" + port
		}
	}

	return scheme + rest, nil
}
