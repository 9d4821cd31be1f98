package normalizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"

	"go.uber.org/zap"
)

// ProfileOverride adjusts a built-in profile. Zero values keep the default.
type ProfileOverride struct {
	Timezone         string         `yaml:"timezone"`
	FetchPadding     time.Duration  `yaml:"fetch_padding"`
	TrustRawCapacity *bool          `yaml:"trust_raw_capacity"`
	Fallback         FallbackPolicy `yaml:"fallback_policy"`
}

// Options configures the built-in normalizers.
type Options struct {
	Fallback  FallbackPolicy
	Overrides map[models.Source]ProfileOverride
}

// DefaultProfiles returns the built-in conventions of every source.
func DefaultProfiles() map[models.Source]Profile {
	return map[models.Source]Profile{
		models.SourceENTSOE: {
			Source:       models.SourceENTSOE,
			Resolution:   models.PT15M,
			ValueKind:    models.KindPower,
			Bucket:       models.GranularityHour,
			Timezone:     "UTC",
			FetchPadding: 0,
		},
		models.SourceELEXON: {
			Source:        models.SourceELEXON,
			Resolution:    models.PT30M,
			ValueKind:     models.KindEnergy,
			Bucket:        models.GranularityHour,
			Timezone:      "Europe/London",
			LocalCalendar: true,
			FetchPadding:  2 * time.Hour,
		},
		models.SourceTAIPOWER: {
			Source:           models.SourceTAIPOWER,
			Resolution:       models.PT60M,
			ValueKind:        models.KindPower,
			Bucket:           models.GranularityHour,
			Timezone:         "Asia/Taipei",
			TrustRawCapacity: true,
		},
		models.SourceNVE: {
			Source:     models.SourceNVE,
			Resolution: models.PT60M,
			ValueKind:  models.KindEnergy,
			Bucket:     models.GranularityHour,
			Timezone:   "Europe/Oslo",
		},
		models.SourceENERGISTYRELSEN: {
			Source:        models.SourceENERGISTYRELSEN,
			Resolution:    models.P1M,
			ValueKind:     models.KindEnergy,
			Bucket:        models.GranularityMonth,
			Timezone:      "Europe/Copenhagen",
			LocalCalendar: true,
			FetchPadding:  24 * time.Hour,
		},
		models.SourceEIA: {
			Source:        models.SourceEIA,
			Resolution:    models.P1M,
			ValueKind:     models.KindEnergy,
			Bucket:        models.GranularityMonth,
			Timezone:      "America/New_York",
			LocalCalendar: true,
			FetchPadding:  24 * time.Hour,
		},
	}
}

// Registry maps a source to its normalizer.
type Registry struct {
	normalizers map[models.Source]Normalizer
}

// NewRegistry builds a registry holding every built-in normalizer.
func NewRegistry(opts Options, logger *zap.Logger) (*Registry, error) {
	if opts.Fallback == "" {
		opts.Fallback = FallbackTrust
	}

	r := &Registry{normalizers: make(map[models.Source]Normalizer)}
	for src, p := range DefaultProfiles() {
		policy := opts.Fallback
		if o, ok := opts.Overrides[src]; ok {
			if o.Timezone != "" {
				p.Timezone = o.Timezone
			}
			if o.FetchPadding > 0 {
				p.FetchPadding = o.FetchPadding
			}
			if o.TrustRawCapacity != nil {
				p.TrustRawCapacity = *o.TrustRawCapacity
			}
			if o.Fallback != "" {
				policy = o.Fallback
			}
		}

		b, err := newBase(p, policy, logger)
		if err != nil {
			return nil, err
		}

		var n Normalizer
		switch src {
		case models.SourceENTSOE:
			n = &entsoeNormalizer{base: b}
		case models.SourceELEXON:
			n = &elexonNormalizer{base: b}
		case models.SourceTAIPOWER, models.SourceNVE:
			n = &hourlyNormalizer{base: b}
		case models.SourceENERGISTYRELSEN, models.SourceEIA:
			n = &monthlyNormalizer{base: b}
		default:
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownSource, src)
		}
		r.normalizers[src] = n
	}
	return r, nil
}

// Register adds or replaces the normalizer for its profile's source.
func (r *Registry) Register(n Normalizer) {
	r.normalizers[n.Profile().Source] = n
}

// Get returns the normalizer for src.
func (r *Registry) Get(src models.Source) (Normalizer, error) {
	n, ok := r.normalizers[src]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownSource, src)
	}
	return n, nil
}

// Sources lists the registered sources in name order.
func (r *Registry) Sources() []models.Source {
	out := make([]models.Source, 0, len(r.normalizers))
	for src := range r.normalizers {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
