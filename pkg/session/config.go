package session

import "time"

// Config holds session request parameters
type Config struct {
	Mode Mode
	Init SessionInit

	// PlacementRequired gates pose updates behind a one-shot hit-test placement.
	PlacementRequired bool

	// RequestTimeout bounds the whole Requesting phase.
	RequestTimeout time.Duration

	// ExitTimeout bounds scene exit and session end during Ending.
	ExitTimeout time.Duration
}

// DefaultConfig returns the free-floating variant: the object follows the hand
// as soon as AR mode is entered.
func DefaultConfig() Config {
	return Config{
		Mode: ModeImmersiveAR,
		Init: SessionInit{
			OptionalFeatures: []string{FeatureDOMOverlay, FeatureHitTest},
		},
		RequestTimeout: 15 * time.Second,
		ExitTimeout:    5 * time.Second,
	}
}

// PlacementConfig returns the placement-gated variant: hit-test is required
// and the object waits for a world anchor before following the hand.
func PlacementConfig() Config {
	cfg := DefaultConfig()
	cfg.PlacementRequired = true
	cfg.Init = SessionInit{
		RequiredFeatures: []string{FeatureHitTest},
		OptionalFeatures: []string{FeatureDOMOverlay, FeatureLocalFloor},
	}
	return cfg
}
