// Package loadsim produces calls with a configurable latency distribution and
// error rate, so dashboards and alerts can be checked against known input.
package loadsim

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"strconv"
	"time"
)

// DefaultMaxDelay caps the delay any profile may request.
const DefaultMaxDelay = 5 * time.Second

// maxDelayMS is the largest millisecond count a time.Duration can hold.
const maxDelayMS = math.MaxInt64 / int64(time.Millisecond)

var ErrInvalidProfile = errors.New("loadsim: invalid profile")

// Profile describes the calls to simulate. Delays are drawn uniformly from
// [MinDelay, MaxDelay]. ClientErrorRate and ErrorRate are the probabilities of
// a 400 and a 500 outcome.
type Profile struct {
	MinDelay        time.Duration
	MaxDelay        time.Duration
	ErrorRate       float64
	ClientErrorRate float64
}

// DefaultProfile is 100ms to 2s of latency, 15% client errors and 15% server errors.
func DefaultProfile() Profile {
	return Profile{
		MinDelay:        100 * time.Millisecond,
		MaxDelay:        2 * time.Second,
		ErrorRate:       0.15,
		ClientErrorRate: 0.15,
	}
}

// Validate checks rates and delays. maxDelay <= 0 uses DefaultMaxDelay.
func (p Profile) Validate(maxDelay time.Duration) error {
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	var errs []error
	if !validRate(p.ErrorRate) {
		errs = append(errs, fmt.Errorf("error_rate must be between 0 and 1, got %v", p.ErrorRate))
	}
	if !validRate(p.ClientErrorRate) {
		errs = append(errs, fmt.Errorf("client_error_rate must be between 0 and 1, got %v", p.ClientErrorRate))
	}
	if validRate(p.ErrorRate) && validRate(p.ClientErrorRate) && p.ErrorRate+p.ClientErrorRate > 1 {
		errs = append(errs, fmt.Errorf("error_rate + client_error_rate must not exceed 1, got %v", p.ErrorRate+p.ClientErrorRate))
	}
	if p.MinDelay < 0 {
		errs = append(errs, fmt.Errorf("min_delay_ms must not be negative, got %d", p.MinDelay.Milliseconds()))
	}
	if p.MaxDelay < p.MinDelay {
		errs = append(errs, fmt.Errorf("max_delay_ms (%d) must not be below min_delay_ms (%d)", p.MaxDelay.Milliseconds(), p.MinDelay.Milliseconds()))
	}
	if p.MaxDelay > maxDelay {
		errs = append(errs, fmt.Errorf("max_delay_ms must not exceed %d, got %d", maxDelay.Milliseconds(), p.MaxDelay.Milliseconds()))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, errors.Join(errs...))
	}
	return nil
}

// validRate rejects NaN and infinities along with anything outside [0, 1].
func validRate(rate float64) bool {
	return !math.IsNaN(rate) && !math.IsInf(rate, 0) && rate >= 0 && rate <= 1
}

// ProfileRequest is the wire form of a profile. Absent fields keep the default.
type ProfileRequest struct {
	MinDelayMS      *int64   `json:"min_delay_ms,omitempty"`
	MaxDelayMS      *int64   `json:"max_delay_ms,omitempty"`
	ErrorRate       *float64 `json:"error_rate,omitempty"`
	ClientErrorRate *float64 `json:"client_error_rate,omitempty"`
}

// Apply overlays the request on base. Delays that do not fit a time.Duration
// are rejected before conversion.
func (r ProfileRequest) Apply(base Profile) (Profile, error) {
	if r.MinDelayMS != nil {
		d, err := millis("min_delay_ms", *r.MinDelayMS)
		if err != nil {
			return Profile{}, err
		}
		base.MinDelay = d
	}
	if r.MaxDelayMS != nil {
		d, err := millis("max_delay_ms", *r.MaxDelayMS)
		if err != nil {
			return Profile{}, err
		}
		base.MaxDelay = d
	}
	if r.ErrorRate != nil {
		base.ErrorRate = *r.ErrorRate
	}
	if r.ClientErrorRate != nil {
		base.ClientErrorRate = *r.ClientErrorRate
	}
	return base, nil
}

func millis(field string, ms int64) (time.Duration, error) {
	if ms > maxDelayMS || ms < -maxDelayMS {
		return 0, fmt.Errorf("%w: %s out of range, got %d", ErrInvalidProfile, field, ms)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ParseQuery reads a profile from query parameters on top of the default profile.
func ParseQuery(values url.Values) (Profile, error) {
	var req ProfileRequest

	for _, field := range []struct {
		name string
		dst  **int64
	}{
		{"min_delay_ms", &req.MinDelayMS},
		{"max_delay_ms", &req.MaxDelayMS},
	} {
		raw := values.Get(field.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %s must be an integer number of milliseconds", ErrInvalidProfile, field.name)
		}
		*field.dst = &v
	}

	for _, field := range []struct {
		name string
		dst  **float64
	}{
		{"error_rate", &req.ErrorRate},
		{"client_error_rate", &req.ClientErrorRate},
	} {
		raw := values.Get(field.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Profile{}, fmt.Errorf("%w: %s must be a number", ErrInvalidProfile, field.name)
		}
		*field.dst = &v
	}

	return req.Apply(DefaultProfile())
}

// DecodeJSON reads a profile from a JSON body. An empty body yields the default profile.
func DecodeJSON(r io.Reader) (Profile, error) {
	var req ProfileRequest
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("%w: malformed JSON body: %v", ErrInvalidProfile, err)
	}
	return req.Apply(DefaultProfile())
}
