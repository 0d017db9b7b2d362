package loadsim

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// MaxCalls bounds a single Run.
const MaxCalls = 10000

// Outcome is the simulated result of a call.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeClientError Outcome = "client_error"
	OutcomeServerError Outcome = "server_error"
)

// StatusCode maps the outcome to the HTTP status it is served with.
func (o Outcome) StatusCode() int {
	switch o {
	case OutcomeClientError:
		return http.StatusBadRequest
	case OutcomeServerError:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// Result describes one simulated call.
type Result struct {
	Outcome Outcome       `json:"outcome"`
	Delay   time.Duration `json:"-"`
}

// Tally summarises a Run.
type Tally struct {
	Calls        int           `json:"calls"`
	Success      int           `json:"success"`
	ClientErrors int           `json:"client_errors"`
	ServerErrors int           `json:"server_errors"`
	Elapsed      time.Duration `json:"-"`
}

// ErrorRate is the share of calls that failed with either error class.
func (t Tally) ErrorRate() float64 {
	if t.Calls == 0 {
		return 0
	}
	return float64(t.ClientErrors+t.ServerErrors) / float64(t.Calls)
}

func (t *Tally) add(o Outcome) {
	t.Calls++
	switch o {
	case OutcomeSuccess:
		t.Success++
	case OutcomeClientError:
		t.ClientErrors++
	case OutcomeServerError:
		t.ServerErrors++
	}
}

// Simulator draws delays and outcomes. It is safe for concurrent use.
type Simulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	metrics  *metrics.Registry
	maxDelay time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithSeed makes the sequence of delays and outcomes reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithMaxDelay sets the delay cap profiles are validated against.
func WithMaxDelay(d time.Duration) Option {
	return func(s *Simulator) {
		if d > 0 {
			s.maxDelay = d
		}
	}
}

// WithSleep replaces the delay implementation.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Simulator) {
		s.sleep = sleep
	}
}

// NewSimulator creates a Simulator. A nil registry disables metrics.
func NewSimulator(registry *metrics.Registry, opts ...Option) *Simulator {
	s := &Simulator{
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		metrics:  registry,
		maxDelay: DefaultMaxDelay,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxDelay is the cap applied to profiles.
func (s *Simulator) MaxDelay() time.Duration {
	return s.maxDelay
}

// Call simulates one call: it waits for the sampled delay and picks an
// outcome. A cancelled ctx interrupts the wait and returns its error.
func (s *Simulator) Call(ctx context.Context, profile Profile) (Result, error) {
	if err := profile.Validate(s.maxDelay); err != nil {
		return Result{}, err
	}

	delay, outcome := s.draw(profile)
	if err := s.sleep(ctx, delay); err != nil {
		return Result{}, err
	}

	if s.metrics != nil {
		_ = s.metrics.Increment(metrics.LoadSimCallsTotal, metrics.Labels{"outcome": string(outcome)})
	}
	return Result{Outcome: outcome, Delay: delay}, nil
}

// Run performs calls simulated calls with at most concurrency in flight.
func (s *Simulator) Run(ctx context.Context, profile Profile, calls, concurrency int) (Tally, error) {
	if calls <= 0 || calls > MaxCalls {
		return Tally{}, fmt.Errorf("%w: calls must be between 1 and %d, got %d", ErrInvalidProfile, MaxCalls, calls)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := profile.Validate(s.maxDelay); err != nil {
		return Tally{}, err
	}

	start := time.Now()
	var (
		mu    sync.Mutex
		tally Tally
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := 0; i < calls; i++ {
		g.Go(func() error {
			result, err := s.Call(gctx, profile)
			if err != nil {
				return err
			}
			mu.Lock()
			tally.add(result.Outcome)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	tally.Elapsed = time.Since(start)
	return tally, err
}

func (s *Simulator) draw(p Profile) (time.Duration, Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delay := p.MinDelay
	if span := p.MaxDelay - p.MinDelay; span > 0 {
		delay += time.Duration(s.rng.Int64N(int64(span) + 1))
	}

	u := s.rng.Float64()
	switch {
	case u < p.ClientErrorRate:
		return delay, OutcomeClientError
	case u < p.ClientErrorRate+p.ErrorRate:
		return delay, OutcomeServerError
	default:
		return delay, OutcomeSuccess
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
