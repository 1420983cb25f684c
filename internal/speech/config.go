package speech

// Config holds the tunable thresholds for delivery analysis. Values here
// are configuration, not core logic; DefaultConfig documents the defaults.
type Config struct {
	// SilenceFloorDB is how far below the track's peak frame energy a
	// frame must fall to count as silent.
	SilenceFloorDB float64
	// MinSilenceMS is the shortest silent stretch that counts as a pause.
	MinSilenceMS int64
	// MergeGapMS merges pauses separated by less speech than this, so one
	// hesitation is not counted twice.
	MergeGapMS int64
	// LongPauseMS is the bound for the long-pause counter.
	LongPauseMS int64
	// FillerWords are matched case-insensitively as whole words.
	FillerWords []string
	// PitchMinHz/PitchMaxHz bound the fundamental-frequency search
	// (roughly C2..C6 covers adult speaking voices with headroom).
	PitchMinHz float64
	PitchMaxHz float64
	// EnergyFrameMS is the frame size for energy/silence scanning;
	// PitchFrameMS the analysis window for pitch tracking.
	EnergyFrameMS int64
	PitchFrameMS  int64
}

func DefaultConfig() Config {
	return Config{
		SilenceFloorDB: 30,
		MinSilenceMS:   300,
		MergeGapMS:     150,
		LongPauseMS:    700,
		FillerWords:    []string{"um", "uh", "er", "ah", "like", "basically", "actually", "so"},
		PitchMinHz:     65,
		PitchMaxHz:     1050,
		EnergyFrameMS:  20,
		PitchFrameMS:   40,
	}
}
