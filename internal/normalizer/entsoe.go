package normalizer

import (
	"fmt"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
)

// entsoeNormalizer handles ENTSOE actual generation per unit: MW samples at
// PT15M or PT60M against a UTC timeline.
type entsoeNormalizer struct {
	base
}

func (n *entsoeNormalizer) Normalize(obs models.RawObservation) (models.CanonicalObservation, error) {
	c, err := n.start(obs)
	if err != nil {
		return c, err
	}

	if code, ok := obs.Metadata.String("resolution_code"); ok && obs.Resolution == "" {
		res, err := models.ParseResolution(code)
		if err != nil {
			return c, fmt.Errorf("raw id %d: %w", obs.ID, err)
		}
		c.Resolution = res
	}
	switch c.Resolution {
	case models.PT15M, models.PT30M, models.PT60M:
	default:
		return c, fmt.Errorf("raw id %d: unsupported ENTSOE resolution %s", obs.ID, c.Resolution)
	}

	sign := obs.Sign
	if consumption, ok := obs.Metadata["consumption"].(bool); ok && consumption {
		sign = models.SignImport
	}
	c.Value = applySign(c.Value, sign)

	n.storedPeriod(obs, &c)
	n.finish(&c)
	return c, nil
}
