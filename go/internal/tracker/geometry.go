package tracker

import (
	"math"

	"github.com/mcdev12/challengetracker/go/internal/options"
)

// Ring identifies one of the two concentric rings
type Ring string

const (
	RingNone  Ring = ""
	RingOuter Ring = "outer"
	RingInner Ring = "inner"
)

const startAngle = 1.5 * math.Pi

// Geometry is the arc layout of one draw
type Geometry struct {
	Size               int     `json:"size"`
	Center             float64 `json:"center"`
	LineWidth          float64 `json:"lineWidth"`
	LineWidthForRadius float64 `json:"lineWidthForRadius"`
	HalfLineWidth      float64 `json:"halfLineWidth"`
	Radius             float64 `json:"radius"`
	InnerRadius        float64 `json:"innerRadius"`
	StartAngle         float64 `json:"startAngle"`
	OuterSlice         float64 `json:"outerSlice"`
	InnerSlice         float64 `json:"innerSlice"`
	OuterEnd           float64 `json:"outerEnd"`
	InnerEnd           float64 `json:"innerEnd"`
	OuterTotal         int     `json:"outerTotal"`
	OuterCurrent       int     `json:"outerCurrent"`
	InnerTotal         int     `json:"innerTotal"`
	InnerCurrent       int     `json:"innerCurrent"`
}

// NewGeometry lays out the rings for eff
func NewGeometry(eff options.EffectiveState) Geometry {
	size := float64(eff.Size)
	lw := float64(eff.LineWidth)

	g := Geometry{
		Size:         eff.Size,
		Center:       size / 2,
		LineWidth:    lw,
		StartAngle:   startAngle,
		OuterTotal:   eff.OuterTotal,
		OuterCurrent: eff.OuterCurrent,
		InnerTotal:   eff.InnerTotal,
		InnerCurrent: eff.InnerCurrent,
	}
	if lw == 0 {
		g.LineWidthForRadius = math.Round(size / 40)
	} else {
		g.LineWidthForRadius = lw * 2
		g.HalfLineWidth = lw / 1.5
	}
	g.Radius = g.Center - g.LineWidthForRadius
	g.InnerRadius = g.Radius / 5 * 3

	g.OuterSlice = 2 * math.Pi / float64(eff.OuterTotal)
	g.OuterEnd = startAngle + g.OuterSlice*float64(eff.OuterCurrent)
	if eff.InnerTotal > 0 {
		g.InnerSlice = 2 * math.Pi / float64(eff.InnerTotal)
		g.InnerEnd = startAngle + g.InnerSlice*float64(eff.InnerCurrent)
	}
	return g
}

// HitTest returns the ring under (x, y). The inner ring wins when enabled.
func (g Geometry) HitTest(x, y float64) Ring {
	d := math.Hypot(x-g.Center, y-g.Center)
	if g.InnerTotal > 0 && d <= g.InnerRadius {
		return RingInner
	}
	if d <= g.Radius {
		return RingOuter
	}
	return RingNone
}

// InOuterArc reports whether (x, y) is inside the outer circle
func (g Geometry) InOuterArc(x, y float64) bool {
	return math.Hypot(x-g.Center, y-g.Center) <= g.Radius
}

// separators returns the spoke end points between the segments of a ring
func (g Geometry) separators(total int, slice, from, to float64) []Line {
	if total <= 1 {
		return nil
	}
	lines := make([]Line, 0, total)
	base := slice * float64(total) / 2
	for i := 0; i < total; i++ {
		theta := base + slice*float64(i)
		sin, cos := math.Sincos(theta)
		lines = append(lines, Line{
			X1: g.Center - from*sin, Y1: g.Center + from*cos,
			X2: g.Center - to*sin, Y2: g.Center + to*cos,
		})
	}
	return lines
}
