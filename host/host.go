// Package host resolves virtual-hosted style bucket addressing.
package host

import (
	"context"
	"net"
	"sort"
	"strings"

	"github.com/sagarc03/bucketry"
)

// Resolver implements bucketry.Host for a fixed set of base domains.
//
// A Host header of the form "<bucket>.<domain>[:port]" addresses bucket
// in virtual-hosted style. Any other host, including a bare domain, is
// treated as path style.
type Resolver struct {
	domains []string
}

var _ bucketry.Host = (*Resolver)(nil)

// New creates a resolver for the given base domains. Domains are matched
// case-insensitively, longest first.
func New(domains ...string) *Resolver {
	ds := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			ds = append(ds, d)
		}
	}

	sort.Slice(ds, func(i, j int) bool { return len(ds[i]) > len(ds[j]) })

	return &Resolver{domains: ds}
}

// Domains returns the configured base domains.
func (r *Resolver) Domains() []string {
	return append([]string(nil), r.domains...)
}

// ParseHost splits host into its bucket and base domain.
func (r *Resolver) ParseHost(_ context.Context, host string) (bucketry.VirtualHost, error) {
	name := strings.ToLower(stripPort(host))

	for _, d := range r.domains {
		if name == d {
			return bucketry.VirtualHost{Domain: d}, nil
		}
		if bucket, ok := strings.CutSuffix(name, "."+d); ok && bucket != "" {
			return bucketry.VirtualHost{Domain: d, Bucket: bucket}, nil
		}
	}

	return bucketry.VirtualHost{Domain: name}, nil
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}
