package models

// WindowMeta describes the host window a tracker renders into
type WindowMeta struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Width    int    `json:"width"`
	Left     *int   `json:"left,omitempty"`
	Top      *int   `json:"top,omitempty"`
	Windowed bool   `json:"windowed"`
}

// NewWindowMeta derives window metadata from options and the effective canvas size
func NewWindowMeta(opts TrackerOptions, size int, windowed bool) WindowMeta {
	meta := WindowMeta{
		ID:       opts.ID,
		Title:    opts.TitleOrDefault(),
		Width:    size,
		Windowed: windowed,
	}
	if opts.Position != nil {
		meta.Left = Int(opts.Position.Left)
		meta.Top = Int(opts.Position.Top)
	}
	return meta
}
