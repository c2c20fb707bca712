package system

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrNoAddress is returned when the host reports no usable IPv4 address.
var ErrNoAddress = errors.New("no IPv4 address")

// LocalIPv4 returns the first non-loopback IPv4 address reported by
// `hostname -I`.
func LocalIPv4(ctx context.Context, r Runner) (string, error) {
	stdout, stderr, err := r.Run(ctx, nil, "hostname", "-I")
	if err != nil {
		return "", fmt.Errorf("hostname -I failed: %v: %s", err, stderr)
	}
	for _, field := range strings.Fields(stdout) {
		ip := net.ParseIP(field)
		if ip == nil || ip.To4() == nil || ip.IsLoopback() {
			continue
		}
		return ip.String(), nil
	}
	return "", ErrNoAddress
}

// ControlURL turns a listen address such as ":8000" into a URL reachable
// from the local network.
func ControlURL(ctx context.Context, r Runner, listen string) (string, error) {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "", fmt.Errorf("listen address %q: %w", listen, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		if host, err = LocalIPv4(ctx, r); err != nil {
			return "", err
		}
	}
	return "http://" + net.JoinHostPort(host, port) + "/", nil
}
