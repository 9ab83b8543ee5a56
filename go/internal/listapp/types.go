package listapp

import (
	"github.com/mcdev12/challengetracker/go/internal/flags"
	"github.com/mcdev12/challengetracker/go/internal/models"
)

// View is one owner's list as seen by a viewer
type View struct {
	OwnerID  string        `json:"owner_id"`
	Editable bool          `json:"editable"`
	Entries  []flags.Entry `json:"entries"`
}

// EditForm is the submitted tracker edit form
type EditForm struct {
	ID                   string            `json:"id"`
	Title                string            `json:"title" validate:"max=120"`
	OuterTotal           int               `json:"outerTotal" validate:"min=1,max=100"`
	OuterCurrent         int               `json:"outerCurrent" validate:"min=0,ltefield=OuterTotal"`
	InnerTotal           int               `json:"innerTotal" validate:"min=0,max=100"`
	InnerCurrent         int               `json:"innerCurrent" validate:"min=0,ltefield=InnerTotal"`
	FrameWidth           models.FrameWidth `json:"frameWidth" validate:"frame_width"`
	Size                 int               `json:"size" validate:"omitempty,min=100,max=500"`
	OuterColor           string            `json:"outerColor" validate:"omitempty,tracker_color"`
	OuterBackgroundColor string            `json:"outerBackgroundColor" validate:"omitempty,tracker_color"`
	InnerColor           string            `json:"innerColor" validate:"omitempty,tracker_color"`
	InnerBackgroundColor string            `json:"innerBackgroundColor" validate:"omitempty,tracker_color"`
	FrameColor           string            `json:"frameColor" validate:"omitempty,tracker_color"`
	ForegroundImage      string            `json:"foregroundImage"`
	BackgroundImage      string            `json:"backgroundImage"`
	Persist              bool              `json:"persist"`
	Show                 bool              `json:"show"`
	Windowed             bool              `json:"windowed"`
}

// DefaultForm is the form a new tracker starts from
func DefaultForm() EditForm {
	return EditForm{
		Title:      models.DefaultTitle,
		OuterTotal: 4,
		InnerTotal: 3,
		FrameWidth: models.FrameWidthMedium,
		Persist:    true,
		Show:       false,
		Windowed:   true,
	}
}

// FormFrom fills a form from stored options
func FormFrom(o models.TrackerOptions) EditForm {
	f := DefaultForm()
	f.ID = o.ID
	f.Title = o.TitleOrDefault()
	f.OuterTotal = models.Value(o.OuterTotal, f.OuterTotal)
	f.OuterCurrent = models.Value(o.OuterCurrent, 0)
	f.InnerTotal = models.Value(o.InnerTotal, f.InnerTotal)
	f.InnerCurrent = models.Value(o.InnerCurrent, 0)
	f.FrameWidth = models.Value(o.FrameWidth, f.FrameWidth)
	f.Size = models.Value(o.Size, 0)
	f.OuterColor = models.Value(o.OuterColor, "")
	f.OuterBackgroundColor = models.Value(o.OuterBackgroundColor, "")
	f.InnerColor = models.Value(o.InnerColor, "")
	f.InnerBackgroundColor = models.Value(o.InnerBackgroundColor, "")
	f.FrameColor = models.Value(o.FrameColor, "")
	f.ForegroundImage = models.Value(o.ForegroundImage, "")
	f.BackgroundImage = models.Value(o.BackgroundImage, "")
	f.Persist = models.Value(o.Persist, f.Persist)
	f.Show = models.Value(o.Show, f.Show)
	f.Windowed = models.Value(o.Windowed, f.Windowed)
	return f
}

// Options converts the form. Empty optional fields stay unset so the
// settings keep supplying them.
func (f EditForm) Options() models.TrackerOptions {
	o := models.TrackerOptions{
		ID:           f.ID,
		Title:        models.String(f.Title),
		OuterTotal:   models.Int(f.OuterTotal),
		OuterCurrent: models.Int(f.OuterCurrent),
		InnerTotal:   models.Int(f.InnerTotal),
		InnerCurrent: models.Int(f.InnerCurrent),
		FrameWidth:   models.Width(f.FrameWidth),
		Persist:      models.Bool(f.Persist),
		Show:         models.Bool(f.Show),
		Windowed:     models.Bool(f.Windowed),
	}
	if f.Size > 0 {
		o.Size = models.Int(f.Size)
	}
	o.OuterColor = optional(f.OuterColor)
	o.OuterBackgroundColor = optional(f.OuterBackgroundColor)
	o.InnerColor = optional(f.InnerColor)
	o.InnerBackgroundColor = optional(f.InnerBackgroundColor)
	o.FrameColor = optional(f.FrameColor)
	o.ForegroundImage = optional(f.ForegroundImage)
	o.BackgroundImage = optional(f.BackgroundImage)
	return o
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return models.String(s)
}
