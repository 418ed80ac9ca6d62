package tracking

import (
	"errors"
	"log/slog"
)

// Tracker is the per-session context object for the gesture-to-pose pipeline.
// It owns the smoothing state. It is not safe for concurrent use; one event
// loop feeds it frames in order.
type Tracker struct {
	config Config
	state  State
	logger *slog.Logger

	// Stats
	processed int
	malformed int
	empty     int
}

// New creates a tracker. A nil logger uses slog.Default().
func New(config Config, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{config: config, logger: logger}
}

// Config returns the tracker configuration.
func (t *Tracker) Config() Config {
	return t.config
}

// State returns a copy of the current smoothing state.
func (t *Tracker) State() State {
	return t.state
}

// Process runs the primary hand of a frame through the pipeline.
// ok is false when the frame has no hand or the hand is malformed; in both
// cases the smoothing state is untouched.
func (t *Tracker) Process(frame Frame) (Pose, bool) {
	hand, found := frame.Primary()
	if !found {
		t.empty++
		return Pose{}, false
	}

	pose, next, err := Step(t.config, hand.Landmarks, t.state)
	if err != nil {
		if errors.Is(err, ErrMalformedFrame) {
			t.malformed++
			t.logger.Debug("skipping malformed frame",
				"frame_id", frame.ID, "landmarks", len(hand.Landmarks))
		}
		return Pose{}, false
	}

	t.state = next
	t.processed++
	return pose, true
}

// Stats holds frame counters.
type Stats struct {
	Processed int `json:"processed"`
	Malformed int `json:"malformed"`
	Empty     int `json:"empty"`
}

// Stats returns frame counters.
func (t *Tracker) Stats() Stats {
	return Stats{Processed: t.processed, Malformed: t.malformed, Empty: t.empty}
}
