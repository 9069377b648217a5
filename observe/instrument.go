package observe

// Instrumentation bundles the telemetry sinks a cache coordinator reports to.
//
// Contract:
//   - Concurrency: safe for concurrent use once constructed.
//   - Errors: all sinks are best-effort; none of them fails a call.
type Instrumentation struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  Logger
}

// NewInstrumentation bundles the given sinks. Nil sinks are replaced by
// no-op implementations.
func NewInstrumentation(tracer Tracer, metrics Metrics, logger Logger) *Instrumentation {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NewNoopLogger()
	}
	return &Instrumentation{
		Tracer:  tracer,
		Metrics: metrics,
		Logger:  logger,
	}
}

// NoopInstrumentation returns an Instrumentation that records nothing.
func NoopInstrumentation() *Instrumentation {
	return NewInstrumentation(nil, nil, nil)
}

// InstrumentationFromObserver builds an Instrumentation from an Observer.
func InstrumentationFromObserver(obs Observer) (*Instrumentation, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewInstrumentation(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
