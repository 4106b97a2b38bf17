package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// Schedule yields the pause before each retry of a failed operation
type Schedule interface {
	// Delay returns the pause before retry number attempt (1-based)
	Delay(attempt int) time.Duration
}

// Exponential grows the pause by Factor after every attempt, up to Cap, and
// spreads each pause by up to ±Spread of its value so retries of records on
// the same host do not line up.
type Exponential struct {
	Base   time.Duration
	Cap    time.Duration
	Factor float64
	Spread float64

	// Float returns a value in [0, 1); math/rand/v2 when nil
	Float func() float64
}

// DefaultExponential starts at 5s and never waits longer than a minute
func DefaultExponential() *Exponential {
	return &Exponential{
		Base:   5 * time.Second,
		Cap:    60 * time.Second,
		Factor: 2.0,
		Spread: 0.1,
	}
}

// Delay implements Schedule
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	factor := e.Factor
	if factor < 1 {
		factor = 2
	}
	d := float64(e.Base) * math.Pow(factor, float64(attempt-1))
	if e.Cap > 0 {
		d = math.Min(d, float64(e.Cap))
	}

	if e.Spread > 0 {
		float := e.Float
		if float == nil {
			float = rand.Float64
		}
		d += (float()*2 - 1) * d * e.Spread
	}

	return time.Duration(math.Max(d, 0))
}

// Fixed waits Interval before every retry
type Fixed struct {
	Interval time.Duration
}

// Delay implements Schedule
func (f Fixed) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}
