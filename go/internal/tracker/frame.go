package tracker

import (
	"math"

	"github.com/mcdev12/challengetracker/go/internal/color"
	"github.com/mcdev12/challengetracker/go/internal/options"
)

// LayerKind identifies a canvas layer. Layers are drawn in the order image, fill, frame.
type LayerKind string

const (
	LayerImage LayerKind = "image"
	LayerFill  LayerKind = "fill"
	LayerFrame LayerKind = "frame"
)

// Compositing operations used by the layers
const (
	CompositeSourceOver      = "source-over"
	CompositeSourceIn        = "source-in"
	CompositeDestinationOut  = "destination-out"
	CompositeDestinationOver = "destination-over"
)

type Stop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// Gradient is a radial gradient between two circles
type Gradient struct {
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	R0    float64 `json:"r0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	R1    float64 `json:"r1"`
	Stops []Stop  `json:"stops"`
}

// Wedge is a filled pie slice from the center
type Wedge struct {
	Ring             Ring      `json:"ring"`
	Radius           float64   `json:"radius"`
	Start            float64   `json:"start"`
	End              float64   `json:"end"`
	CounterClockwise bool      `json:"counterClockwise,omitempty"`
	Composite        string    `json:"composite"`
	Fill             *Gradient `json:"fill,omitempty"`
}

// ImageDraw places a loaded image on the canvas
type ImageDraw struct {
	Role      string  `json:"role"`
	URL       string  `json:"url"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Composite string  `json:"composite"`
}

type Line struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Outline is a stroked ring border
type Outline struct {
	Ring      Ring     `json:"ring"`
	Radius    float64  `json:"radius"`
	LineWidth float64  `json:"lineWidth"`
	Stroke    Gradient `json:"stroke"`
}

type Shadow struct {
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
	Blur    float64 `json:"blur"`
	Color   string  `json:"color"`
}

// Layer is one canvas of the tracker
type Layer struct {
	Kind      LayerKind   `json:"kind"`
	Wedges    []Wedge     `json:"wedges,omitempty"`
	Images    []ImageDraw `json:"images,omitempty"`
	Lines     []Line      `json:"lines,omitempty"`
	LineWidth float64     `json:"lineWidth,omitempty"`
	LineColor string      `json:"lineColor,omitempty"`
	Shadow    *Shadow     `json:"shadow,omitempty"`
	Outlines  []Outline   `json:"outlines,omitempty"`
}

// Frame is everything a host needs to paint one draw
type Frame struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Geometry Geometry `json:"geometry"`
	Layers   []Layer  `json:"layers"`
}

// BuildFrame lays out the three layers for eff. Images missing from loaded
// are left out.
func BuildFrame(eff options.EffectiveState, loaded map[string]bool) Frame {
	g := NewGeometry(eff)
	return Frame{
		ID:       eff.ID,
		Title:    eff.Title,
		Geometry: g,
		Layers: []Layer{
			imageLayer(g, eff, loaded),
			fillLayer(g, eff.Palette),
			frameLayer(g, eff.Palette.Frame),
		},
	}
}

func imageLayer(g Geometry, eff options.EffectiveState, loaded map[string]bool) Layer {
	layer := Layer{Kind: LayerImage}
	inset := g.LineWidthForRadius
	extent := float64(g.Size) - inset*2

	if fg := eff.ForegroundImage; fg != "" && loaded[fg] {
		if g.OuterCurrent > 0 {
			layer.Wedges = append(layer.Wedges, Wedge{Ring: RingOuter, Radius: g.Radius, Start: g.StartAngle, End: g.OuterEnd, Composite: CompositeSourceOver})
		}
		if g.InnerTotal > 0 {
			layer.Wedges = append(layer.Wedges, Wedge{Ring: RingInner, Radius: g.InnerRadius, Start: 0, End: 2 * math.Pi, Composite: CompositeDestinationOut})
		}
		if g.InnerCurrent > 0 {
			layer.Wedges = append(layer.Wedges, Wedge{Ring: RingInner, Radius: g.InnerRadius, Start: g.StartAngle, End: g.InnerEnd, Composite: CompositeSourceOver})
		}
		layer.Images = append(layer.Images, ImageDraw{Role: "foreground", URL: fg, X: inset, Y: inset, Width: extent, Height: extent, Composite: CompositeSourceIn})
	}
	if bg := eff.BackgroundImage; bg != "" && loaded[bg] {
		layer.Images = append(layer.Images, ImageDraw{Role: "background", URL: bg, X: inset, Y: inset, Width: extent, Height: extent, Composite: CompositeDestinationOver})
	}
	return layer
}

func fillLayer(g Geometry, p options.Palette) Layer {
	layer := Layer{Kind: LayerFill}
	c := g.Center

	ringFill := func(v color.Variants, r0, r1 float64) *Gradient {
		return &Gradient{X0: c, Y0: c, R0: r0, X1: c, Y1: c, R1: r1, Stops: []Stop{{0, v.Base}, {1, v.Shade}}}
	}
	remaining := func(ring Ring, radius float64, total, current int, end float64, fill *Gradient) {
		if total-current <= 0 {
			return
		}
		w := Wedge{Ring: ring, Radius: radius, Start: g.StartAngle, End: end, CounterClockwise: true, Composite: CompositeSourceOver, Fill: fill}
		if current == 0 {
			w.End = -0.5 * math.Pi
		}
		layer.Wedges = append(layer.Wedges, w)
	}

	remaining(RingOuter, g.Radius, g.OuterTotal, g.OuterCurrent, g.OuterEnd, ringFill(p.OuterBackground, g.InnerRadius, g.Radius))
	if g.OuterCurrent > 0 {
		layer.Wedges = append(layer.Wedges, Wedge{Ring: RingOuter, Radius: g.Radius, Start: g.StartAngle, End: g.OuterEnd, Composite: CompositeSourceOver, Fill: ringFill(p.Outer, g.InnerRadius, g.Radius)})
	}

	if g.InnerTotal > 0 {
		layer.Wedges = append(layer.Wedges, Wedge{Ring: RingInner, Radius: g.InnerRadius, Start: 0, End: 2 * math.Pi, Composite: CompositeDestinationOut})
		remaining(RingInner, g.InnerRadius, g.InnerTotal, g.InnerCurrent, g.InnerEnd, ringFill(p.InnerBackground, 0, g.InnerRadius))
		if g.InnerCurrent > 0 {
			layer.Wedges = append(layer.Wedges, Wedge{Ring: RingInner, Radius: g.InnerRadius, Start: g.StartAngle, End: g.InnerEnd, Composite: CompositeSourceOver, Fill: ringFill(p.Inner, 0, g.InnerRadius)})
		}
	}
	return layer
}

func frameLayer(g Geometry, v color.Variants) Layer {
	layer := Layer{Kind: LayerFrame}
	half := g.HalfLineWidth

	if g.LineWidth != 0 {
		from := 0.0
		if g.InnerTotal > 0 {
			from = g.InnerRadius
		}
		layer.Lines = append(layer.Lines, g.separators(g.OuterTotal, g.OuterSlice, from, g.Radius)...)
		if g.InnerTotal > 0 {
			layer.Lines = append(layer.Lines, g.separators(g.InnerTotal, g.InnerSlice, 0, g.InnerRadius)...)
		}
		layer.LineWidth = half
		layer.LineColor = v.Base
		layer.Shadow = &Shadow{OffsetX: half / 2, OffsetY: half / 2, Blur: half, Color: "rgba(0, 0, 0, 0.5)"}
	}

	outline := func(ring Ring, radius float64) Outline {
		c := g.Center + half/4
		return Outline{
			Ring:      ring,
			Radius:    radius,
			LineWidth: g.LineWidth,
			Stroke: Gradient{
				X0: c, Y0: c, R0: radius - half - half/4,
				X1: c, Y1: c, R1: radius + half + half/4,
				Stops: []Stop{
					{0, v.Highlight2}, {0.1, v.Highlight1}, {0.3, v.Base},
					{0.7, v.Base}, {0.9, v.Highlight1}, {1, v.Highlight2},
				},
			},
		}
	}
	layer.Outlines = append(layer.Outlines, outline(RingOuter, g.Radius))
	if g.InnerTotal > 0 {
		layer.Outlines = append(layer.Outlines, outline(RingInner, g.InnerRadius))
	}
	return layer
}
