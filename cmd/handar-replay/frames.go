package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/teslashibe/go-handar/pkg/tracking"
)

// loadFrames reads one frame per line. A line is either a full frame object
// ({"hands":[...]}) or a bare landmark array for a single hand. Blank lines
// and lines starting with # are skipped; a line of "[]" or "{}" is an empty frame.
func loadFrames(r io.Reader) ([]tracking.Frame, error) {
	var frames []tracking.Frame
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 || text[0] == '#' {
			continue
		}

		var frame tracking.Frame
		switch text[0] {
		case '[':
			var set tracking.LandmarkSet
			if err := json.Unmarshal(text, &set); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if len(set) > 0 {
				frame.Hands = []tracking.Hand{{Landmarks: set}}
			}
		case '{':
			if err := json.Unmarshal(text, &frame); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		default:
			return nil, fmt.Errorf("line %d: expected JSON object or array", line)
		}

		frame.ID = uint64(len(frames) + 1)
		frames = append(frames, frame)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

// synthFrames generates a pinch that circles the frame center while the
// finger gap opens and closes.
func synthFrames(n int) []tracking.Frame {
	frames := make([]tracking.Frame, n)
	for i := range frames {
		t := float64(i) / float64(n) * 2 * math.Pi
		cx := 0.5 + 0.15*math.Cos(t)
		cy := 0.5 + 0.15*math.Sin(t)
		gap := 0.02 + 0.04*(1+math.Sin(2*t))/2

		set := make(tracking.LandmarkSet, tracking.NumLandmarks)
		for j := range set {
			set[j] = tracking.Landmark{X: cx, Y: cy + 0.1, Z: 0}
		}
		set[tracking.ThumbTip] = tracking.Landmark{X: cx - gap/2, Y: cy, Z: -0.02}
		set[tracking.IndexTip] = tracking.Landmark{X: cx + gap/2, Y: cy - gap/4, Z: -0.04}

		frames[i] = tracking.Frame{
			ID:    uint64(i + 1),
			Hands: []tracking.Hand{{Landmarks: set, Handedness: "Right", Score: 0.95}},
		}
	}
	return frames
}
