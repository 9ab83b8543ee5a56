package tracker

import "github.com/mcdev12/challengetracker/go/internal/models"

func ringFields(o *models.TrackerOptions, ring Ring) (total, current **int, defTotal int) {
	if ring == RingInner {
		return &o.InnerTotal, &o.InnerCurrent, 0
	}
	return &o.OuterTotal, &o.OuterCurrent, 4
}

// Increment fills one more segment of ring, stopping at the total
func Increment(o *models.TrackerOptions, ring Ring) {
	total, current, def := ringFields(o, ring)
	t := models.Value(*total, def)
	c := models.Value(*current, 0)
	if c < t {
		c++
	}
	*current = models.Int(min(c, t))
}

// Decrement empties one segment of ring. An empty ring wraps to full.
func Decrement(o *models.TrackerOptions, ring Ring) {
	total, current, def := ringFields(o, ring)
	t := models.Value(*total, def)
	c := models.Value(*current, 0)
	if c <= 0 {
		c = t
	} else {
		c--
	}
	*current = models.Int(min(c, t))
}

// Grow adds a segment to ring
func Grow(o *models.TrackerOptions, ring Ring) {
	total, _, def := ringFields(o, ring)
	*total = models.Int(models.Value(*total, def) + 1)
}

// Shrink removes a segment from ring, keeping at least one, and clamps the
// current value to the new total
func Shrink(o *models.TrackerOptions, ring Ring) {
	total, current, def := ringFields(o, ring)
	t := models.Value(*total, def)
	if t > 1 {
		t--
	}
	*total = models.Int(t)
	if c := models.Value(*current, 0); c > t {
		*current = models.Int(t)
	}
}

// SetTotal sets the total of ring, clamping current when it shrinks below it
func SetTotal(o *models.TrackerOptions, ring Ring, t int) {
	total, current, _ := ringFields(o, ring)
	if ring == RingOuter {
		t = max(1, t)
	} else {
		t = max(0, t)
	}
	*total = models.Int(t)
	if c := models.Value(*current, 0); c > t {
		*current = models.Int(t)
	}
}
