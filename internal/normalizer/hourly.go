package normalizer

import (
	"fmt"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
)

// hourlyNormalizer handles sources that deliver one reading per unit and UTC
// hour (TAIPOWER, NVE). Parallel sub-unit rows are kept apart via SubUnit.
type hourlyNormalizer struct {
	base
}

func (n *hourlyNormalizer) Normalize(obs models.RawObservation) (models.CanonicalObservation, error) {
	c, err := n.start(obs)
	if err != nil {
		return c, err
	}
	if c.Resolution != models.PT60M {
		return c, fmt.Errorf("raw id %d: unsupported %s resolution %s", obs.ID, n.profile.Source, c.Resolution)
	}
	if obs.Unit == "kWh" {
		c.Value = c.Value.Shift(-3)
	}
	c.Value = applySign(c.Value, obs.Sign)

	n.storedPeriod(obs, &c)
	n.finish(&c)
	return c, nil
}
