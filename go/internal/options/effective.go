package options

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/challengetracker/go/internal/color"
	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/settings"
)

// Palette holds the derived variants of each ring color
type Palette struct {
	Outer           color.Variants `json:"outer"`
	OuterBackground color.Variants `json:"outerBackground"`
	Inner           color.Variants `json:"inner"`
	InnerBackground color.Variants `json:"innerBackground"`
	Frame           color.Variants `json:"frame"`
}

// EffectiveState is the fully resolved render state of one tracker
type EffectiveState struct {
	ID              string            `json:"id"`
	OwnerID         string            `json:"ownerId"`
	Title           string            `json:"title"`
	OuterTotal      int               `json:"outerTotal"`
	OuterCurrent    int               `json:"outerCurrent"`
	InnerTotal      int               `json:"innerTotal"`
	InnerCurrent    int               `json:"innerCurrent"`
	Size            int               `json:"size"`
	FrameWidth      models.FrameWidth `json:"frameWidth"`
	LineWidth       int               `json:"lineWidth"`
	Scroll          bool              `json:"scroll"`
	Windowed        bool              `json:"windowed"`
	Show            bool              `json:"show"`
	Persist         bool              `json:"persist"`
	ForegroundImage string            `json:"foregroundImage,omitempty"`
	BackgroundImage string            `json:"backgroundImage,omitempty"`
	Palette         Palette           `json:"palette"`
}

// Effective resolves every field of opts against the settings and the built-in
// defaults. Numeric and boolean fields fall back only when nil. Colors also
// fall back when empty or unparseable.
func Effective(opts models.TrackerOptions, s settings.Settings) EffectiveState {
	def := settings.Defaults()

	outerTotal := max(1, models.Value(opts.OuterTotal, 4))
	innerTotal := max(0, models.Value(opts.InnerTotal, 0))

	frameWidth := models.Value(opts.FrameWidth, s.FrameWidth)
	if !frameWidth.Valid() {
		frameWidth = models.FrameWidthMedium
	}
	size := models.Value(opts.Size, s.Size)
	if size <= 0 {
		size = def.Size
	}

	return EffectiveState{
		ID:              opts.ID,
		OwnerID:         opts.OwnerID,
		Title:           opts.TitleOrDefault(),
		OuterTotal:      outerTotal,
		OuterCurrent:    clamp(models.Value(opts.OuterCurrent, 0), 0, outerTotal),
		InnerTotal:      innerTotal,
		InnerCurrent:    clamp(models.Value(opts.InnerCurrent, 0), 0, innerTotal),
		Size:            size,
		FrameWidth:      frameWidth,
		LineWidth:       frameWidth.LineWidth(size),
		Scroll:          models.Value(opts.Scroll, s.Scroll),
		Windowed:        models.Value(opts.Windowed, s.Windowed),
		Show:            models.Value(opts.Show, false),
		Persist:         models.Value(opts.Persist, false),
		ForegroundImage: models.Value(opts.ForegroundImage, ""),
		BackgroundImage: models.Value(opts.BackgroundImage, ""),
		Palette: Palette{
			Outer:           pick(opts.OuterColor, s.OuterColor, def.OuterColor),
			OuterBackground: pick(opts.OuterBackgroundColor, s.OuterBackgroundColor, def.OuterBackgroundColor),
			Inner:           pick(opts.InnerColor, s.InnerColor, def.InnerColor),
			InnerBackground: pick(opts.InnerBackgroundColor, s.InnerBackgroundColor, def.InnerBackgroundColor),
			Frame:           pick(opts.FrameColor, s.FrameColor, def.FrameColor),
		},
	}
}

// pick derives variants from the first usable color
func pick(opt *string, setting, builtin string) color.Variants {
	candidates := []string{setting, builtin}
	if opt != nil && *opt != "" {
		candidates = append([]string{*opt}, candidates...)
	}
	for _, c := range candidates {
		v, err := color.Derive(c)
		if err == nil {
			return v
		}
		log.Debug().Err(err).Str("color", c).Msg("skipping unusable color")
	}
	return color.Variants{}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
