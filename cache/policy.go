package cache

import (
	"fmt"
	"time"
)

// KeyPolicy selects how a cached function derives keys and whether its
// entries expire.
type KeyPolicy int

const (
	// UseAllParameters keys on every argument value. This is the default.
	UseAllParameters KeyPolicy = iota

	// UseSpecifiedProperties keys structured arguments on the configured
	// property names only.
	UseSpecifiedProperties

	// IgnoreTTL keys like UseAllParameters, but entries never expire.
	IgnoreTTL
)

// String returns the string representation of the key policy.
func (p KeyPolicy) String() string {
	switch p {
	case UseAllParameters:
		return "all-parameters"
	case UseSpecifiedProperties:
		return "specified-properties"
	case IgnoreTTL:
		return "ignore-ttl"
	default:
		return "unknown"
	}
}

// ParseKeyPolicy parses the String form of a KeyPolicy.
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch s {
	case "", "all-parameters":
		return UseAllParameters, nil
	case "specified-properties":
		return UseSpecifiedProperties, nil
	case "ignore-ttl":
		return IgnoreTTL, nil
	default:
		return UseAllParameters, fmt.Errorf("cache: unknown key policy %q", s)
	}
}

// Policy is the process-wide expiry configuration shared by every function
// bound to a Service.
type Policy struct {
	// TTL is the maximum age of a valid entry.
	TTL time.Duration

	// IgnoreTTL disables expiry for every bound function.
	IgnoreTTL bool
}

// DefaultPolicy returns the default expiry policy.
// TTL: 5 minutes, IgnoreTTL: false
func DefaultPolicy() Policy {
	return Policy{
		TTL:       5 * time.Minute,
		IgnoreTTL: false,
	}
}

// Validate checks the policy.
func (p Policy) Validate() error {
	if !p.IgnoreTTL && p.TTL <= 0 {
		return ErrInvalidTTL
	}
	return nil
}

// IsExpired reports whether an entry created at createdAt is stale at now
// for a function bound with keyPolicy.
func (p Policy) IsExpired(createdAt time.Time, keyPolicy KeyPolicy, now time.Time) bool {
	if p.IgnoreTTL {
		return false
	}
	return IsExpired(createdAt, keyPolicy, now, p.TTL)
}

// IsExpired reports whether an entry created at createdAt is older than ttl
// at now. Entries bound with the IgnoreTTL key policy never expire.
func IsExpired(createdAt time.Time, keyPolicy KeyPolicy, now time.Time, ttl time.Duration) bool {
	if keyPolicy == IgnoreTTL {
		return false
	}
	return now.Sub(createdAt) > ttl
}
