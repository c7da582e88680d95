package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Profile produces PV production and household consumption for a time of
// day.
type Profile struct {
	peakPVW      float64
	baseLoadW    float64
	eveningLoadW float64
	noise        float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewProfile builds the profile described by cfg. The same seed yields the
// same sequence of values.
func NewProfile(cfg Config) *Profile {
	return &Profile{
		peakPVW:      cfg.PeakPVW,
		baseLoadW:    cfg.BaseLoadW,
		eveningLoadW: cfg.EveningLoadW,
		noise:        cfg.Noise,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
	}
}

func hourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// PV returns the solar production, a half sine between 6:00 and 20:00.
func (p *Profile) PV(t time.Time) float64 {
	h := hourOfDay(t)
	if h < 6 || h > 20 {
		return 0
	}
	return p.jitter(p.peakPVW * math.Sin(math.Pi*(h-6)/14))
}

// Load returns the household consumption: a base load plus morning and
// evening peaks.
func (p *Profile) Load(t time.Time) float64 {
	h := hourOfDay(t)
	load := p.baseLoadW
	load += 0.5 * p.eveningLoadW * bump(h, 7.5, 1)
	load += p.eveningLoadW * bump(h, 19.5, 1.5)
	return p.jitter(load)
}

func bump(h, center, width float64) float64 {
	d := (h - center) / width
	return math.Exp(-d * d)
}

func (p *Profile) jitter(v float64) float64 {
	if p.noise == 0 || v == 0 {
		return v
	}
	p.mu.Lock()
	f := 1 + p.noise*(2*p.rng.Float64()-1)
	p.mu.Unlock()
	return math.Max(v*f, 0)
}
