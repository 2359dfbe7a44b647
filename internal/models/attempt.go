package models

import "time"

// LoginAttempt is one recorded login evaluation. Rows are append-only: an
// attempt is written exactly once, after its risk metadata has been computed
// from the history that preceded it, and is never mutated or deleted except
// by the retention sweeper.
type LoginAttempt struct {
	ID          int64      `db:"id"`
	Username    string     `db:"username"`
	AttemptTime time.Time  `db:"attempt_time"`
	Success     bool       `db:"success"`
	IPAddress   string     `db:"ip_address"`
	UserAgent   string     `db:"user_agent"`
	RiskScore   *int       `db:"risk_score"`
	RiskLevel   *string    `db:"risk_level"`
}

// AttemptSummary is the dashboard projection of a login attempt.
type AttemptSummary struct {
	Username    string    `json:"username"`
	AttemptTime time.Time `json:"attempt_time"`
	Success     bool      `json:"success"`
	IPAddress   string    `json:"ip_address"`
	RiskScore   *int      `json:"risk_score"`
	RiskLevel   *string   `json:"risk_level"`
}
