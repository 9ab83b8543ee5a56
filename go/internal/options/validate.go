package options

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mcdev12/challengetracker/go/internal/models"
	"github.com/mcdev12/challengetracker/go/internal/notify"
)

// Validate checks keys against the schema. Every unknown key is reported to r
// with its suggestion and the returned error lists all of them.
func Validate(keys []string, r notify.Reporter) error {
	var unknown []models.UnknownKey
	for _, k := range keys {
		if IsKnown(k) {
			continue
		}
		uk := models.UnknownKey{Key: k, Suggestion: FuzzyMatch(k, Schema)}
		unknown = append(unknown, uk)
		if r != nil {
			r.Notify(notify.Notification{Level: notify.LevelError, Message: uk.String()})
		}
	}
	if len(unknown) > 0 {
		return &models.ValidationError{Keys: unknown}
	}
	return nil
}

// Keys returns the top-level keys of a JSON object in sorted order
func Keys(data []byte) ([]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("options must be a JSON object: %w", err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Parse validates the keys of a JSON object and decodes it. Nothing is
// decoded when validation fails.
func Parse(data []byte, r notify.Reporter) (models.TrackerOptions, error) {
	var opts models.TrackerOptions
	keys, err := Keys(data)
	if err != nil {
		return opts, notify.Error(r, err)
	}
	if err := Validate(keys, r); err != nil {
		return opts, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&opts); err != nil {
		return models.TrackerOptions{}, notify.Error(r, fmt.Errorf("failed to decode options: %w", err))
	}
	if opts.FrameWidth != nil && !opts.FrameWidth.Valid() {
		return models.TrackerOptions{}, notify.Error(r, fmt.Errorf("invalid frameWidth '%s'", *opts.FrameWidth))
	}
	return opts, nil
}
