package models

import "time"

// AchievementType identifies an entry of the achievement catalog.
type AchievementType string

const (
	AchievementFirstAnalysis       AchievementType = "first_analysis"
	AchievementBugHunter           AchievementType = "bug_hunter"
	AchievementSecurityExpert      AchievementType = "security_expert"
	AchievementPerfectionist       AchievementType = "perfectionist"
	AchievementPersistent          AchievementType = "persistent"
	AchievementCodeMaster          AchievementType = "code_master"
	AchievementVulnerabilitySlayer AchievementType = "vulnerability_slayer"
	AchievementQualityGuardian     AchievementType = "quality_guardian"
	AchievementSpeedAnalyzer       AchievementType = "speed_analyzer"
	AchievementMissionMaster       AchievementType = "mission_master"
	AchievementCriticalFixer       AchievementType = "critical_fixer"
	AchievementConsistencyChampion AchievementType = "consistency_champion"
	AchievementLearningChampion    AchievementType = "learning_champion"
	AchievementEliteAnalyst        AchievementType = "elite_analyst"
	AchievementOptimizationMaster  AchievementType = "optimization_master"
	AchievementEfficientDeveloper  AchievementType = "efficient_developer"
	AchievementLegendaryDeveloper  AchievementType = "legendary_developer"
)

// Achievement is a per-user catalog row, unlocked at most once. Progress
// counts toward the target and is refreshed on every evaluation.
type Achievement struct {
	ID              string          `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	Type            AchievementType `db:"type" json:"type"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	Category        string          `db:"category" json:"category"`
	Points          int             `db:"points" json:"points"`
	ProgressCurrent int             `db:"progress_current" json:"progress_current"`
	ProgressTarget  int             `db:"progress_target" json:"progress_target"`
	Unlocked        bool            `db:"unlocked" json:"unlocked"`
	UnlockedAt      *time.Time      `db:"unlocked_at" json:"unlocked_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// AchievementDefinition is a static catalog entry.
type AchievementDefinition struct {
	Type        AchievementType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Points      int             `json:"points"`
	Target      int             `json:"target"`
}

// AchievementCatalog lists every achievement a user can earn. Order is
// stable; new entries are appended.
func AchievementCatalog() []AchievementDefinition {
	return []AchievementDefinition{
		{AchievementFirstAnalysis, "First Analysis", "Complete your first code analysis", "milestone", 10, 1},
		{AchievementBugHunter, "Bug Hunter", "Detect 50 issues across your analyses", "detection", 25, 50},
		{AchievementSecurityExpert, "Security Expert", "Fix 20 high severity issues", "remediation", 50, 20},
		{AchievementPerfectionist, "Perfectionist", "Complete an analysis with zero issues", "quality", 40, 1},
		{AchievementPersistent, "Persistent", "Fix 10 missions in a row", "remediation", 30, 10},
		{AchievementCodeMaster, "Code Master", "Improve your issue count over 5 consecutive submissions", "quality", 45, 5},
		{AchievementVulnerabilitySlayer, "Vulnerability Slayer", "Fix 100 issues in total", "remediation", 75, 100},
		{AchievementQualityGuardian, "Quality Guardian", "Complete 3 consecutive analyses without high severity issues", "quality", 35, 3},
		{AchievementSpeedAnalyzer, "Speed Analyzer", "Run 15 analyses", "milestone", 20, 15},
		{AchievementMissionMaster, "Mission Master", "Resolve every mission, fixed or skipped", "remediation", 40, 1},
		{AchievementCriticalFixer, "Critical Fixer", "Fix 50 high severity issues", "remediation", 60, 50},
		{AchievementConsistencyChampion, "Consistency Champion", "Reach a correction rate of 80%", "quality", 45, 80},
		{AchievementLearningChampion, "Learning Champion", "Fix every mission you received", "remediation", 55, 1},
		{AchievementEliteAnalyst, "Elite Analyst", "Run 20 analyses with a correction rate of 70%", "quality", 65, 20},
		{AchievementOptimizationMaster, "Optimization Master", "Improve 15 times across 20 analyses", "quality", 70, 15},
		{AchievementEfficientDeveloper, "Efficient Developer", "Complete 10 analyses with fewer than 20 issues each", "quality", 35, 10},
		{AchievementLegendaryDeveloper, "Legendary Developer", "Unlock every other achievement", "meta", 100, 16},
	}
}

// UserStats is the aggregate a user's achievement predicates are
// evaluated against.
type UserStats struct {
	TotalRuns           int     `json:"total_runs"`
	CompletedRuns       int     `json:"completed_runs"`
	TotalDetected       int     `json:"total_detected"`
	TotalFixed          int     `json:"total_fixed"`
	CriticalDetected    int     `json:"critical_detected"`
	CriticalFixed       int     `json:"critical_fixed"`
	PerfectRuns         int     `json:"perfect_runs"`
	LongestFixedStreak  int     `json:"longest_fixed_streak"`
	ImprovingIterations int     `json:"improving_iterations"`
	LongestNoHighStreak int     `json:"longest_no_high_streak"`
	LowIssueRuns        int     `json:"low_issue_runs"`
	TotalMissions       int     `json:"total_missions"`
	FixedMissions       int     `json:"fixed_missions"`
	SkippedMissions     int     `json:"skipped_missions"`
	CorrectionRate      float64 `json:"correction_rate"`
}
