package cache

import (
	"time"

	"github.com/jonwraymond/memocache/observe"
)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPolicy sets the process-wide expiry policy.
func WithPolicy(p Policy) ServiceOption {
	return func(s *Service) {
		s.policy = p
	}
}

// WithClock replaces time.Now as the entry timestamp and expiry clock.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReconcilers sets the registry of reconcilable argument types.
func WithReconcilers(r *Reconcilers) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.reconcilers = r
		}
	}
}

// WithInstrumentation sets the telemetry sinks.
func WithInstrumentation(inst *observe.Instrumentation) ServiceOption {
	return func(s *Service) {
		if inst != nil {
			s.inst = inst
		}
	}
}

// BindOption configures one bound function.
type BindOption func(*bindConfig)

type bindConfig struct {
	key   KeyConfig
	keyer Keyer
}

// WithGroup sets the key namespace of the bound function.
func WithGroup(name string) BindOption {
	return func(b *bindConfig) {
		b.key.GroupName = name
	}
}

// WithKeyPolicy sets the key policy of the bound function.
func WithKeyPolicy(p KeyPolicy) BindOption {
	return func(b *bindConfig) {
		b.key.Policy = p
	}
}

// WithProperties keys structured arguments on the named properties and
// switches the key policy to UseSpecifiedProperties.
func WithProperties(names ...string) BindOption {
	return func(b *bindConfig) {
		b.key.Policy = UseSpecifiedProperties
		b.key.Properties = append(b.key.Properties, names...)
	}
}

// WithParams declares the formal parameters of the bound function.
func WithParams(params ...Param) BindOption {
	return func(b *bindConfig) {
		b.key.Params = append(b.key.Params, params...)
	}
}

// WithKeyer replaces the default KeyBuilder.
func WithKeyer(k Keyer) BindOption {
	return func(b *bindConfig) {
		b.keyer = k
	}
}
