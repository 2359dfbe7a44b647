package risk

// Score computes the additive risk score for one login attempt. Each feature
// contributes independently; adding a qualifying condition never lowers the
// total.
func Score(f Features) int {
	score := 0

	if f.TimeGap != nil && *f.TimeGap < TimeGapThreshold {
		score += TimeGapWeight
	}

	if f.ContinuousAttempts >= ContinuousAttemptsThreshold {
		score += ContinuousAttemptsWeight
	}

	if f.UniqueUsernames >= UniqueUsernamesThreshold {
		score += UniqueUsernamesWeight
	}

	if f.FailCount >= FailCountThreshold {
		score += FailCountWeight
	}

	return score
}

// LevelForScore buckets a score into its discrete risk level.
func LevelForScore(score int) Level {
	switch {
	case score <= NormalMaxScore:
		return LevelNormal
	case score <= SuspiciousMaxScore:
		return LevelSuspicious
	default:
		return LevelAttack
	}
}
