// Package planner decides how many visual units a timed narration
// segment needs and how long each one runs. Units default to the ideal
// clip duration; the last unit absorbs the remainder, merging upward
// when the remainder would fall below the configured minimum.
package planner

import (
	"reelforge/internal/config"
	"reelforge/internal/media"
	"reelforge/internal/services"
)

// Planner splits segment durations into visual units. Stateless.
type Planner struct {
	idealMS int64
	minMS   int64
}

// New builds a planner from the configured clip durations.
func New(cfg *config.Config) *Planner {
	return &Planner{
		idealMS: int64(cfg.Planner.IdealClipMS),
		minMS:   int64(cfg.Planner.MinClipMS),
	}
}

// Plan returns the visual units for one segment timing. Unit durations
// always sum to the segment duration exactly, and no unit is shorter
// than the minimum unless the whole segment is.
func (p *Planner) Plan(timing media.SegmentTiming) ([]media.VisualUnit, error) {
	duration := timing.DurationMS()
	if duration <= 0 {
		return nil, services.Wrap(services.ErrValidation, "planner", "plan", "segment has no duration", nil)
	}
	if duration <= p.minMS || duration <= p.idealMS {
		return []media.VisualUnit{{SegmentIndex: timing.Index, DurationMS: duration}}, nil
	}

	n := duration / p.idealMS
	if duration%p.idealMS != 0 {
		n++
	}
	last := duration - (n-1)*p.idealMS
	if last < p.minMS && n > 1 {
		n--
		last = duration - (n-1)*p.idealMS
	}

	units := make([]media.VisualUnit, n)
	for i := range units {
		units[i] = media.VisualUnit{
			SegmentIndex: timing.Index,
			UnitIndex:    i,
			DurationMS:   p.idealMS,
		}
	}
	units[n-1].DurationMS = last
	return units, nil
}

// PlanAll plans every segment of a run in timing order.
func (p *Planner) PlanAll(timings []media.SegmentTiming) ([]media.VisualUnit, error) {
	var units []media.VisualUnit
	for _, timing := range timings {
		planned, err := p.Plan(timing)
		if err != nil {
			return nil, err
		}
		units = append(units, planned...)
	}
	return units, nil
}
