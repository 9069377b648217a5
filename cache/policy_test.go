package cache

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.TTL != 5*time.Minute {
		t.Errorf("TTL = %v, want %v", p.TTL, 5*time.Minute)
	}
	if p.IgnoreTTL {
		t.Error("IgnoreTTL = true, want false")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr error
	}{
		{"positive ttl", Policy{TTL: time.Second}, nil},
		{"zero ttl", Policy{}, ErrInvalidTTL},
		{"negative ttl", Policy{TTL: -time.Second}, ErrInvalidTTL},
		{"zero ttl ignored", Policy{IgnoreTTL: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ttl := 60 * time.Second

	tests := []struct {
		name      string
		keyPolicy KeyPolicy
		age       time.Duration
		want      bool
	}{
		{"fresh", UseAllParameters, 10 * time.Second, false},
		{"exactly ttl", UseAllParameters, ttl, false},
		{"past ttl", UseAllParameters, ttl + time.Nanosecond, true},
		{"properties past ttl", UseSpecifiedProperties, 70 * time.Second, true},
		{"ignore ttl", IgnoreTTL, 24 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsExpired(created, tt.keyPolicy, created.Add(tt.age), ttl)
			if got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPolicy_IsExpired_GlobalIgnore(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Policy{TTL: time.Second, IgnoreTTL: true}

	if p.IsExpired(created, UseAllParameters, created.Add(time.Hour)) {
		t.Error("IsExpired() = true with IgnoreTTL policy")
	}

	p.IgnoreTTL = false
	if !p.IsExpired(created, UseAllParameters, created.Add(time.Hour)) {
		t.Error("IsExpired() = false for an hour-old entry with 1s TTL")
	}
}

func TestKeyPolicy_String(t *testing.T) {
	for _, p := range []KeyPolicy{UseAllParameters, UseSpecifiedProperties, IgnoreTTL} {
		parsed, err := ParseKeyPolicy(p.String())
		if err != nil {
			t.Fatalf("ParseKeyPolicy(%q) error = %v", p.String(), err)
		}
		if parsed != p {
			t.Errorf("ParseKeyPolicy(%q) = %v, want %v", p.String(), parsed, p)
		}
	}

	if KeyPolicy(99).String() != "unknown" {
		t.Errorf("KeyPolicy(99).String() = %q, want %q", KeyPolicy(99).String(), "unknown")
	}
	if _, err := ParseKeyPolicy("bogus"); err == nil {
		t.Error("ParseKeyPolicy(bogus) should fail")
	}
}
