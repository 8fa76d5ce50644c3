// Package urlsafe classifies caller-supplied URLs as safe to fetch.
// It implements SSRF prevention: scheme allow-listing, localhost
// rejection, and private/reserved IP detection for both literal
// addresses and every DNS-resolved address of a hostname.
//
// Known gap: classification resolves DNS separately from the connection
// the fetcher later makes. Nothing pins the validated address to the
// address actually dialed, so a hostname whose records change between
// validation and fetch (DNS rebinding) is not caught here.
package urlsafe

import (
	"context"
	"net"
	"net/url"
	"strings"
)

// Pre-compiled CIDR networks for private/reserved ranges, parsed once at
// package initialization.
var (
	v4Reserved []*net.IPNet
	v6Reserved []*net.IPNet
)

func init() {
	v4CIDRs := []string{
		"0.0.0.0/8",      // "this" network
		"10.0.0.0/8",     // RFC 1918
		"127.0.0.0/8",    // loopback
		"169.254.0.0/16", // link-local
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"224.0.0.0/4",    // multicast
		"240.0.0.0/4",    // reserved, includes broadcast
	}
	v6CIDRs := []string{
		"::1/128",   // loopback
		"::/128",    // unspecified
		"fc00::/7",  // unique local
		"fe80::/10", // link-local
		"fec0::/10", // deprecated site-local
	}

	for _, cidr := range v4CIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid IPv4 CIDR: " + err.Error())
		}
		v4Reserved = append(v4Reserved, network)
	}
	for _, cidr := range v6CIDRs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic("invalid IPv6 CIDR: " + err.Error())
		}
		v6Reserved = append(v6Reserved, network)
	}
}

// Validation failure reasons.
const (
	ReasonInvalidFormat     = "invalid format"
	ReasonUnsupportedScheme = "unsupported scheme"
	ReasonLocalhost         = "localhost is not allowed"
	ReasonPrivateAddress    = "private or reserved address"
	ReasonResolveFailed     = "could not resolve hostname"
)

// ValidationError reports why a URL was rejected. A failed validation is
// terminal for the request; this stage never retries.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func reject(reason string) error {
	return &ValidationError{Reason: reason}
}

// Validator checks URLs against the SSRF policy. The zero value is not
// usable; construct with New.
type Validator struct {
	resolver *net.Resolver
}

// Option configures a Validator.
type Option func(*Validator)

// WithResolver sets a custom DNS resolver, mainly for tests.
func WithResolver(r *net.Resolver) Option {
	return func(v *Validator) {
		v.resolver = r
	}
}

// New creates a Validator using the default system resolver.
func New(opts ...Option) *Validator {
	v := &Validator{resolver: net.DefaultResolver}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks rawURL against the SSRF policy and returns the parsed
// URL on success. Hostnames that are not literal IPs are resolved for
// both address families; if any resolved address is private or reserved
// the whole URL is rejected.
func (v *Validator) Validate(ctx context.Context, rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, reject(ReasonInvalidFormat)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, reject(ReasonUnsupportedScheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, reject(ReasonInvalidFormat)
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") || host == "localhost.localdomain" {
		return nil, reject(ReasonLocalhost)
	}

	// Literal IPs are classified directly, without DNS. net.ParseIP
	// expands abbreviated IPv6 forms, so "::" and friends compare
	// correctly against the reserved ranges.
	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return nil, reject(ReasonPrivateAddress)
		}
		return parsed, nil
	}

	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil || len(addrs) == 0 {
		return nil, reject(ReasonResolveFailed)
	}
	for _, addr := range addrs {
		if IsPrivateIP(addr.IP) {
			return nil, reject(ReasonPrivateAddress)
		}
	}

	return parsed, nil
}

// IsPrivateIP reports whether ip falls in a private or reserved range.
// IPv4-mapped IPv6 addresses are classified by their embedded IPv4.
func IsPrivateIP(ip net.IP) bool {
	if v4 := ip.To4(); v4 != nil {
		for _, network := range v4Reserved {
			if network.Contains(v4) {
				return true
			}
		}
		return false
	}

	for _, network := range v6Reserved {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
