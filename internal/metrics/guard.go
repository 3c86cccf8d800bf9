package metrics

import (
	"context"
	"sync/atomic"

	"codeberg.org/mutker/vehiclectl/internal/catalog"
	"codeberg.org/mutker/vehiclectl/internal/logger"
	"codeberg.org/mutker/vehiclectl/internal/property"
)

// guardedProperty is a property known to fail for some area IDs on some
// hardware revisions. Candidates are tried in order; the first failed read
// disables the property until the process exits.
type guardedProperty struct {
	name      string
	id        catalog.PropertyID
	areas     []catalog.AreaID
	isFloat   bool
	supported atomic.Bool
}

func newGuardedProperty(name string, id catalog.PropertyID, isFloat bool, areas ...catalog.AreaID) *guardedProperty {
	g := &guardedProperty{
		name:    name,
		id:      id,
		areas:   areas,
		isFloat: isFloat,
	}
	g.supported.Store(true)

	return g
}

// read returns the first positive value among the candidate areas.
func (g *guardedProperty) read(ctx context.Context, r property.Reader, log logger.Logger) (float64, bool) {
	if !g.supported.Load() {
		return 0, false
	}

	for _, area := range g.areas {
		var (
			v  float64
			ok bool
		)
		if g.isFloat {
			v, ok = r.ReadFloat(ctx, g.id, area)
		} else {
			var i int
			i, ok = r.ReadInt(ctx, g.id, area)
			v = float64(i)
		}

		if !ok {
			// a call that never reached the service says nothing about
			// the property
			if r.Status() != property.StatusReady {
				return 0, false
			}
			g.supported.Store(false)
			suppressed.Inc()
			log.Warn().
				Str("property", g.name).
				Str("address", catalog.Address{ID: g.id, Area: area}.String()).
				Msg("Property read failed, disabling further reads")
			return 0, false
		}
		if v > 0 {
			return v, true
		}
	}

	return 0, false
}

// Supported reports whether the property is still being read.
func (g *guardedProperty) Supported() bool {
	return g.supported.Load()
}
