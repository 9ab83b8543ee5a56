package options

import (
	layering "github.com/goliatone/go-options/layering"

	"github.com/mcdev12/challengetracker/go/internal/models"
)

// Merge composes option layers ordered from strongest to weakest. A field set
// in a stronger layer wins, nil pointers and empty ids fall through. Explicit
// zero values such as 0 or false are kept. The result is normalized.
func Merge(layers ...models.TrackerOptions) models.TrackerOptions {
	if len(layers) == 0 {
		return models.TrackerOptions{}
	}
	merged := layering.MergeLayers(layers...)

	// plain strings always win in the layered merge, ids fall through instead
	merged.ID = firstNonEmpty(layers, func(o models.TrackerOptions) string { return o.ID })
	merged.OwnerID = firstNonEmpty(layers, func(o models.TrackerOptions) string { return o.OwnerID })

	Normalize(&merged)
	return merged
}

func firstNonEmpty(layers []models.TrackerOptions, field func(models.TrackerOptions) string) string {
	for _, l := range layers {
		if v := field(l); v != "" {
			return v
		}
	}
	return ""
}

// Normalize keeps the segment counters consistent: outerTotal is at least 1,
// innerTotal at least 0 and each current within [0, total]. Fields left nil
// stay nil, a current without its total is only floored at 0.
func Normalize(o *models.TrackerOptions) {
	if o.OuterTotal != nil && *o.OuterTotal < 1 {
		o.OuterTotal = models.Int(1)
	}
	if o.InnerTotal != nil && *o.InnerTotal < 0 {
		o.InnerTotal = models.Int(0)
	}
	o.OuterCurrent = clampCurrent(o.OuterCurrent, o.OuterTotal)
	o.InnerCurrent = clampCurrent(o.InnerCurrent, o.InnerTotal)
}

func clampCurrent(current, total *int) *int {
	if current == nil {
		return nil
	}
	hi := *current
	if total != nil {
		hi = *total
	}
	return models.Int(clamp(*current, 0, hi))
}

// Defaults returns the built-in option values. Colors, size, frame width,
// scroll and windowed are left unset so the settings layer can supply them.
func Defaults() models.TrackerOptions {
	return models.TrackerOptions{
		Title:        models.String(models.DefaultTitle),
		OuterTotal:   models.Int(4),
		OuterCurrent: models.Int(0),
		InnerTotal:   models.Int(0),
		InnerCurrent: models.Int(0),
		Show:         models.Bool(false),
		Persist:      models.Bool(false),
	}
}

// Resolve layers the call-site override over the persisted flag over the
// built-in defaults. persisted may be nil.
func Resolve(persisted *models.TrackerOptions, override models.TrackerOptions) models.TrackerOptions {
	if persisted == nil {
		return Merge(override, Defaults())
	}
	return Merge(override, *persisted, Defaults())
}
