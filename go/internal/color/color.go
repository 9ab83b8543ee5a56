// Package color derives the shade and highlight variants used by the ring gradients.
package color

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// ShadeFactor darkens a color for the outer stop of a radial gradient.
	ShadeFactor = 1.25
	// HighlightFactor keeps the frame highlight at the base intensity.
	HighlightFactor = 1.0
)

// RGBA is a parsed hex color. Alpha keeps the original hex digits, empty when absent.
type RGBA struct {
	R, G, B uint8
	Alpha   string
}

// Hex formats the color as #rrggbb[aa]
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x%s", c.R, c.G, c.B, c.Alpha)
}

// Parse reads #rrggbb, rrggbb, #rrggbbaa or rrggbbaa
func Parse(hex string) (RGBA, error) {
	s := strings.TrimPrefix(hex, "#")
	if len(s) != 6 && len(s) != 8 {
		return RGBA{}, fmt.Errorf("invalid color %q: expected 6 or 8 hex digits", hex)
	}
	var c RGBA
	for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
		}
		*dst = uint8(v)
	}
	if len(s) == 8 {
		if _, err := strconv.ParseUint(s[6:8], 16, 8); err != nil {
			return RGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
		}
		c.Alpha = s[6:8]
	}
	return c, nil
}

// Valid reports whether hex parses as a color
func Valid(hex string) bool {
	_, err := Parse(hex)
	return err == nil
}

// Shade divides each channel by decimal, clamping at 255. Alpha is preserved.
// Factors above 1 darken, factors below 1 brighten.
func Shade(hex string, decimal float64) (string, error) {
	if decimal <= 0 {
		return "", fmt.Errorf("invalid shade factor %v", decimal)
	}
	c, err := Parse(hex)
	if err != nil {
		return "", err
	}
	c.R = scale(c.R, decimal)
	c.G = scale(c.G, decimal)
	c.B = scale(c.B, decimal)
	return c.Hex(), nil
}

func scale(v uint8, decimal float64) uint8 {
	r := math.Round(float64(v) / decimal)
	if r > 255 {
		return 255
	}
	return uint8(r)
}

// Variants are the colors derived from one base color
type Variants struct {
	Base       string `json:"base"`
	Shade      string `json:"shade"`
	Highlight1 string `json:"highlight1"`
	Highlight2 string `json:"highlight2"`
}

// Derive computes the gradient variants of base
func Derive(base string) (Variants, error) {
	shade, err := Shade(base, ShadeFactor)
	if err != nil {
		return Variants{}, err
	}
	hl, err := Shade(base, HighlightFactor)
	if err != nil {
		return Variants{}, err
	}
	return Variants{Base: base, Shade: shade, Highlight1: hl, Highlight2: hl}, nil
}
