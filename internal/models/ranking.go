package models

// RankingEntry is one row of the quality leaderboard.
type RankingEntry struct {
	Rank         int     `db:"-" json:"rank"`
	UserID       string  `db:"user_id" json:"user_id"`
	FullName     string  `db:"full_name" json:"full_name"`
	RunCount     int     `db:"run_count" json:"run_count"`
	AverageScore float64 `db:"average_score" json:"average_score"`
	TotalPoints  int     `db:"total_points" json:"total_points"`
}

// UserRank is a single user's leaderboard position.
type UserRank struct {
	UserID       string  `json:"user_id"`
	Rank         int     `json:"rank"`
	TotalRanked  int     `json:"total_ranked"`
	AverageScore float64 `json:"average_score"`
	RunCount     int     `json:"run_count"`
}

// GlobalRankingStats summarises the platform-wide leaderboard.
type GlobalRankingStats struct {
	TotalUsers   int           `json:"total_users"`
	TotalRuns    int           `json:"total_runs"`
	AverageScore float64       `json:"average_score"`
	MostActive   *RankingEntry `json:"most_active,omitempty"`
	BestQuality  *RankingEntry `json:"best_quality,omitempty"`
}
