package domain

// LatePolicy decides what happens to a submission after the deadline.
type LatePolicy string

const (
	LateReject LatePolicy = "reject"
	LateFlag   LatePolicy = "flag"
)

// ScoringPolicy selects how matched answers turn into a score.
type ScoringPolicy string

const (
	// ScorePoints awards a question's points only when it is fully correct.
	ScorePoints ScoringPolicy = "points"
	// ScoreBand counts each sub-answer and converts the percentage to a band.
	ScoreBand ScoringPolicy = "band"
)

// ResubmitPolicy decides whether a resubmission opens a new attempt.
type ResubmitPolicy string

const (
	ResubmitNewAttempt ResubmitPolicy = "new_attempt"
	// ResubmitUpsert overwrites the latest ungraded submission while its time limit runs.
	ResubmitUpsert ResubmitPolicy = "upsert"
)

// Policy is the per-assessment submission configuration.
type Policy struct {
	OnLate        LatePolicy     `json:"onLate"`
	Scoring       ScoringPolicy  `json:"scoring"`
	Resubmit      ResubmitPolicy `json:"resubmit"`
	RequireActive bool           `json:"requireActive"`
}

// DefaultPolicy returns the policy each assessment kind has historically used.
func DefaultPolicy(kind Kind) Policy {
	switch kind {
	case KindReadingTest:
		return Policy{
			OnLate:   LateFlag,
			Scoring:  ScoreBand,
			Resubmit: ResubmitUpsert,
		}
	default:
		return Policy{
			OnLate:        LateReject,
			Scoring:       ScorePoints,
			Resubmit:      ResubmitNewAttempt,
			RequireActive: true,
		}
	}
}
