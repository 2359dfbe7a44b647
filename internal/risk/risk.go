// Package risk scores login attempts from four features extracted from an
// address's recent history: gap since the previous attempt, attempt volume in
// a trailing two-minute window, distinct usernames across the last attempts,
// and failures in a trailing five-minute window. Scores range 0-100 and map
// onto three discrete levels; Attack triggers a temporary IP block upstream.
//
// The engine is a fixed-threshold heuristic, not a model. It holds no state
// and performs no I/O, so every input/output pair is directly testable.
package risk

import "time"

// Level is the discrete bucket derived from a risk score.
type Level string

const (
	LevelNormal     Level = "Normal"
	LevelSuspicious Level = "Suspicious"
	LevelAttack     Level = "Attack"
)

// Score contributions. Independent and additive; all four together reach
// exactly 100.
const (
	TimeGapWeight            = 20
	ContinuousAttemptsWeight = 30
	UniqueUsernamesWeight    = 25
	FailCountWeight          = 25
)

// Trigger thresholds.
const (
	TimeGapThreshold            = 2 * time.Second
	ContinuousAttemptsThreshold = 4
	UniqueUsernamesThreshold    = 3
	FailCountThreshold          = 5
)

// Level boundaries: score <= 30 is Normal, 31..60 is Suspicious, > 60 is Attack.
const (
	NormalMaxScore     = 30
	SuspiciousMaxScore = 60
)

// Features carries the inputs to Score, each derived from the attempt log
// strictly before the current attempt is recorded.
type Features struct {
	// TimeGap is the elapsed time since the address's previous attempt,
	// nil if this is the first attempt ever seen from the address.
	TimeGap *time.Duration

	// ContinuousAttempts counts attempts from the address in the trailing
	// two-minute window, including the attempt being evaluated.
	ContinuousAttempts int

	// UniqueUsernames counts distinct usernames across the most recent
	// attempts from the address plus the current attempt's username.
	UniqueUsernames int

	// FailCount counts failed attempts from the address in the trailing
	// five-minute window.
	FailCount int
}
