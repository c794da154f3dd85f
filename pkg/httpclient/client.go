// Package httpclient provides a resilient HTTP client with a circuit
// breaker and automatic retries, used for talking to the search engine.
//
// The circuit breaker keeps a flapping engine from absorbing every request
// during an outage: after a run of consecutive failures the circuit opens
// and calls fail fast with ErrCircuitOpen until the cooldown elapses, at
// which point a single probe request is let through.
package httpclient

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a request
// without sending it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config controls client behaviour.
type Config struct {
	// ConnectTimeout bounds TCP connection establishment.
	ConnectTimeout time.Duration
	// RequestTimeout bounds one whole request including body read.
	RequestTimeout time.Duration
	// RetryAttempts is the number of retries after the initial attempt.
	// Only transport errors and retryable statuses (429, 502-504) retry.
	RetryAttempts int
	// RetryBackoff is the initial backoff, doubled per attempt.
	RetryBackoff time.Duration
	// BreakerThreshold is the consecutive failure count that opens the
	// circuit. Zero disables the breaker.
	BreakerThreshold int
	// BreakerCooldown is how long the circuit stays open before a probe.
	BreakerCooldown time.Duration
	// Logger receives retry and state transition logs. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns conservative defaults suitable for a local or
// same-network engine.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   30 * time.Second,
		RetryAttempts:    2,
		RetryBackoff:     250 * time.Millisecond,
		BreakerThreshold: 5,
		BreakerCooldown:  15 * time.Second,
	}
}

// Client is a resilient HTTP client.
type Client struct {
	cfg     Config
	breaker *CircuitBreaker
	inner   *http.Client
	logger  *slog.Logger
}

// New creates a client from the given configuration.
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var breaker *CircuitBreaker
	if cfg.BreakerThreshold > 0 {
		breaker = NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	}
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg:     cfg,
		breaker: breaker,
		inner:   &http.Client{Transport: transport, Timeout: cfg.RequestTimeout},
		logger:  logger,
	}
}

// Do sends the request, retrying transport errors and retryable statuses
// with exponential backoff. Requests without GetBody are never retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, ErrCircuitOpen)
	}

	attempts := c.cfg.RetryAttempts
	if req.Body != nil && req.GetBody == nil {
		attempts = 0
	}

	var resp *http.Response
	var err error
	backoff := c.cfg.RetryBackoff
	for attempt := 0; ; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				break
			}
			req.Body = body
		}

		resp, err = c.inner.Do(req)
		if err == nil && !isRetryableStatus(resp.StatusCode) {
			break
		}
		if attempt >= attempts {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}
		c.logger.Debug("retrying request",
			slog.String("url", req.URL.String()),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff))

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	if c.breaker != nil {
		// Engine-answered statuses, including 4xx API errors, count as
		// successes for breaker purposes; only transport failures and
		// 5xx storms should open the circuit.
		if err != nil || (resp != nil && resp.StatusCode >= 500) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return resp, err
}

// CircuitState reports the breaker state, or CircuitClosed when the
// breaker is disabled.
func (c *Client) CircuitState() CircuitState {
	if c.breaker == nil {
		return CircuitClosed
	}
	return c.breaker.State()
}

// StandardClient returns an *http.Client whose transport routes through
// this client, for libraries that accept a standard client.
func (c *Client) StandardClient() *http.Client {
	return &http.Client{Transport: &resilientTransport{client: c}}
}

type resilientTransport struct {
	client *Client
}

func (t *resilientTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.client.Do(req)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// CircuitState is the breaker state.
type CircuitState int

const (
	// CircuitClosed lets all requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen fails all requests fast.
	CircuitOpen
	// CircuitHalfOpen lets one probe request through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker is a consecutive-failure breaker with a cooldown probe.
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	state     CircuitState
	openedAt  time.Time
	probing   bool

	// now is swappable in tests.
	now func() time.Time
}

// NewCircuitBreaker creates a breaker that opens after threshold
// consecutive failures and probes again after cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     CircuitClosed,
		now:       time.Now,
	}
}

// Allow reports whether a request may proceed, transitioning to half-open
// when the cooldown has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false
		}
		cb.state = CircuitHalfOpen
		cb.probing = true
		return true
	default: // half-open: one probe at a time
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
}

// RecordSuccess closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
	cb.probing = false
}

// RecordFailure counts a failure, opening the circuit at the threshold or
// re-opening it from half-open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.threshold {
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
		cb.probing = false
	}
}

// State returns the current breaker state without side effects.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
