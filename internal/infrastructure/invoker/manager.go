package invoker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"dispatch-server/services/dispatch-api/internal/infrastructure/metrics"
	"dispatch-server/services/dispatch-api/internal/utils/httpclients"
)

const (
	defaultFailureThreshold = 3
	defaultRecoveryInterval = 30 * time.Second
	defaultMaxConcurrency   = 8
	defaultRequestTimeout   = 30 * time.Second
)

// Invoke is the caller-supplied transport function executed against the
// endpoint the manager selects. The manager is transport-agnostic: it only
// requires fn to report success or an error.
type Invoke func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error)

// Result carries the outcome of an asynchronous call.
type Result struct {
	Value any
	Err   error
}

// Options tunes one manager. Zero fields fall back to package defaults.
type Options struct {
	FailureThreshold int
	RecoveryInterval time.Duration
	MaxConcurrency   int
	RequestTimeout   time.Duration
	// OverallTimeout bounds the sum of all failover attempts within one
	// call. Zero leaves the total unbounded; each attempt is still bounded
	// by RequestTimeout.
	OverallTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = defaultFailureThreshold
	}
	if o.RecoveryInterval <= 0 {
		o.RecoveryInterval = defaultRecoveryInterval
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = defaultMaxConcurrency
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = defaultRequestTimeout
	}
	return o
}

// Manager fails calls over across the endpoints of one scope. Many request
// handlers share one cached instance; all mutable state lives behind
// per-endpoint locks in the health tracker and gate, so calls touching
// different endpoints never contend.
type Manager struct {
	scope     string
	endpoints []EndpointConfig
	clients   map[string]*resty.Client
	health    *healthTracker
	gate      *concurrencyGate
	opts      Options
	now       func() time.Time
	log       zerolog.Logger
}

// NewManager builds a manager over the scope's endpoints. An empty endpoint
// list is a configuration fault and fails here, never at call time.
func NewManager(scope string, endpoints []EndpointConfig, opts Options, log zerolog.Logger) (*Manager, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("scope %q: %w", scope, ErrNoEndpoints)
	}
	opts = opts.withDefaults()

	ranked := rankEndpoints(endpoints)
	manager := &Manager{
		scope:     scope,
		endpoints: ranked,
		clients:   make(map[string]*resty.Client, len(ranked)),
		health:    newHealthTracker(scope, ranked, opts.FailureThreshold, opts.RecoveryInterval, log),
		gate:      newConcurrencyGate(ranked, opts.MaxConcurrency),
		opts:      opts,
		now:       time.Now,
		log:       log.With().Str("component", "failover-manager").Str("scope", scope).Logger(),
	}
	for _, endpoint := range ranked {
		manager.clients[endpoint.Name] = manager.newTransportClient(endpoint)
	}

	manager.log.Info().
		Int("endpoints", len(ranked)).
		Int("failure_threshold", opts.FailureThreshold).
		Dur("recovery_interval", opts.RecoveryInterval).
		Int("max_concurrency", opts.MaxConcurrency).
		Dur("request_timeout", opts.RequestTimeout).
		Msg("built failover manager")
	return manager, nil
}

// rankEndpoints orders by descending priority; the stable sort keeps
// registration order for ties, so ranking is deterministic under test.
func rankEndpoints(endpoints []EndpointConfig) []EndpointConfig {
	ranked := make([]EndpointConfig, len(endpoints))
	copy(ranked, endpoints)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})
	return ranked
}

func (m *Manager) newTransportClient(endpoint EndpointConfig) *resty.Client {
	client := httpclients.NewClient(fmt.Sprintf("%s.%s", m.scope, endpoint.Name))
	client.SetBaseURL(endpoint.BaseURL)
	key := strings.TrimSpace(endpoint.APIKey)
	if key != "" && !strings.EqualFold(key, "none") {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", key))
	}
	return client
}

// Scope returns the scope this manager serves.
func (m *Manager) Scope() string {
	return m.scope
}

// Endpoints returns the ranked endpoint list.
func (m *Manager) Endpoints() []EndpointConfig {
	list := make([]EndpointConfig, len(m.endpoints))
	copy(list, m.endpoints)
	return list
}

// Snapshot returns per-endpoint breaker status for the health surface.
func (m *Manager) Snapshot() map[string]EndpointStatus {
	return m.health.Snapshot()
}

// Call tries the ranked endpoints in order until one succeeds. Endpoints
// with an open circuit are skipped, a saturated gate skips to the next
// candidate without mutating breaker state, and each attempt runs under the
// configured request timeout. Within one call attempts are strictly
// sequential; no endpoint is retried. When every candidate is exhausted the
// collected attempt errors surface as one *AggregateError.
func (m *Manager) Call(ctx context.Context, operation string, fn Invoke) (any, error) {
	if m.opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.OverallTimeout)
		defer cancel()
	}

	var attempts []AttemptError
	for _, endpoint := range m.endpoints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		eligible, trial := m.health.Eligible(endpoint.Name, m.now())
		if !eligible {
			continue
		}
		if !m.gate.TryAcquire(endpoint.Name) {
			if trial {
				m.health.CancelTrial(endpoint.Name)
			}
			metrics.InvokerGateRejectionsTotal.WithLabelValues(m.scope, endpoint.Name).Inc()
			m.log.Debug().
				Str("endpoint", endpoint.Name).
				Str("operation", operation).
				Msg("concurrency gate full, skipping endpoint")
			continue
		}

		m.log.Debug().
			Str("endpoint", endpoint.Name).
			Str("operation", operation).
			Bool("trial", trial).
			Msg("attempting endpoint")

		value, err := m.attempt(ctx, endpoint, fn)
		m.gate.Release(endpoint.Name)

		if err == nil {
			m.health.RecordSuccess(endpoint.Name)
			metrics.InvokerAttemptsTotal.WithLabelValues(m.scope, endpoint.Name, "success").Inc()
			return value, nil
		}

		// Caller cancellation abandons the call outright: the endpoint did
		// not fail, so no failure is recorded and no further candidate is
		// tried. A claimed half-open trial slot is returned so the
		// endpoint can still be probed later.
		if ctxErr := ctx.Err(); ctxErr != nil {
			if trial {
				m.health.CancelTrial(endpoint.Name)
			}
			return nil, ctxErr
		}

		m.health.RecordFailure(endpoint.Name, m.now(), trial)
		metrics.InvokerAttemptsTotal.WithLabelValues(m.scope, endpoint.Name, "failure").Inc()
		m.log.Warn().
			Err(err).
			Str("endpoint", endpoint.Name).
			Str("operation", operation).
			Msg("endpoint attempt failed, failing over")
		attempts = append(attempts, AttemptError{Endpoint: endpoint.Name, Err: err})
	}

	return nil, &AggregateError{Scope: m.scope, Operation: operation, Attempts: attempts}
}

// attempt bounds one endpoint attempt by the request timeout. An expired
// timeout is classified as a failure identically to a transport error.
func (m *Manager) attempt(ctx context.Context, endpoint EndpointConfig, fn Invoke) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	defer cancel()

	value, err := fn(attemptCtx, m.clients[endpoint.Name], endpoint)
	if err != nil {
		return nil, err
	}
	if attemptCtx.Err() != nil {
		return nil, attemptCtx.Err()
	}
	return value, nil
}

// CallAsync runs Call on its own goroutine and delivers the outcome on the
// returned channel. Ordering and failover semantics are identical to Call.
func (m *Manager) CallAsync(ctx context.Context, operation string, fn Invoke) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		value, err := m.Call(ctx, operation, fn)
		out <- Result{Value: value, Err: err}
	}()
	return out
}
