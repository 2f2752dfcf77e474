package model

import "encoding/json"

// CreateActivityResponse is returned by POST /activities. The backend may
// attach an immediate tip alongside the persisted activity.
type CreateActivityResponse struct {
	Activity    Activity `json:"activity"`
	RealTimeTip *Tip     `json:"realTimeTip,omitempty"`
}

// ActivityFilters narrows a list request. Zero values mean unfiltered.
type ActivityFilters struct {
	StartDate    string
	EndDate      string
	ActivityType string
	ActivityName string
	Page         int
	Limit        int
}

// ListActivitiesResponse is returned by GET /activities.
type ListActivitiesResponse struct {
	Activities []Activity  `json:"activities"`
	Summary    ListSummary `json:"summary"`
}

// ListSummary aggregates the returned page.
type ListSummary struct {
	TotalImpact float64 `json:"totalImpact"`
}

// PreviewRequest is the body of POST /activities/calculate-preview.
type PreviewRequest struct {
	ActivityType string          `json:"activityType"`
	Quantity     Quantity        `json:"quantity"`
	Details      ActivityDetails `json:"activityDetails"`
}

// PreviewResponse carries the server-computed impact for an unsaved draft.
// Calculation is rendered verbatim; its field formats are owned by the
// backend and the client never reinterprets them.
type PreviewResponse struct {
	CalculatedCarbonFootprint float64     `json:"calculatedCarbonFootprint"`
	EmissionFactor            json.Number `json:"emissionFactor"`
	Calculation               Calculation `json:"calculation"`
}

// Calculation is the backend's breakdown of a preview computation.
type Calculation struct {
	Quantity string          `json:"quantity"`
	Formula  string          `json:"formula,omitempty"`
	Raw      json.RawMessage `json:"details,omitempty"`
}

// StatsFilters narrows a stats request.
type StatsFilters struct {
	StartDate    string
	EndDate      string
	ActivityType string
}

// ActivityStats is returned by GET /activities/stats/summary.
type ActivityStats struct {
	TotalActivities int                `json:"totalActivities"`
	TotalImpact     float64            `json:"totalImpact"`
	ByCategory      map[string]float64 `json:"byCategory"`
}

// EmissionFactors is the reference table from
// GET /activities/reference/emission-factors, kept as raw categories since
// the client only displays it.
type EmissionFactors struct {
	Factors map[string]json.RawMessage `json:"factors"`
}

// Dashboard is returned by GET /dashboard.
type Dashboard struct {
	TotalEmissions        float64       `json:"totalEmissions"`
	CommunityAverage      float64       `json:"communityAverage"`
	ComparisonToCommunity string        `json:"comparisonToCommunity"`
	ActivitiesCount       int           `json:"activitiesCount"`
	WeeklyBreakdown       []DayEmission `json:"weeklyBreakdown"`
}

// DayEmission is one day of the dashboard's weekly breakdown.
type DayEmission struct {
	Date      string  `json:"date"`
	Emissions float64 `json:"emissions"`
}

// Streak is returned by GET /streak.
type Streak struct {
	CurrentStreak           int           `json:"currentStreak"`
	LongestStreak           int           `json:"longestStreak"`
	TotalDays               int           `json:"totalDays"`
	AverageActivitiesPerDay float64       `json:"averageActivitiesPerDay"`
	WeeklySummary           []WeekSummary `json:"weeklySummary"`
}

// WeekSummary is one week of streak history.
type WeekSummary struct {
	Week       string  `json:"week"`
	Activities int     `json:"activities"`
	Emissions  float64 `json:"emissions"`
}

// LeaderboardEntry is one ranked row of the community leaderboard.
type LeaderboardEntry struct {
	Rank               int     `json:"rank"`
	Username           string  `json:"username"`
	TotalEmissions     float64 `json:"totalEmissions"`
	ActivityCount      int     `json:"activityCount"`
	AveragePerActivity float64 `json:"averagePerActivity"`
}

// Leaderboard is returned by GET /leaderboard.
type Leaderboard struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	CurrentUser *LeaderboardEntry  `json:"currentUser"`
}

// UserStats is returned by GET /stats.
type UserStats struct {
	Period          int     `json:"period"`
	TotalEmissions  float64 `json:"totalEmissions"`
	ActivitiesCount int     `json:"activitiesCount"`
	DailyAverage    float64 `json:"dailyAverage"`
}

// CategoryBreakdown is one category slice of the weekly analysis.
type CategoryBreakdown struct {
	Category  string  `json:"category"`
	Emissions float64 `json:"emissions"`
	Share     float64 `json:"share"`
}

// WeeklyAnalysis is returned by GET /insights/weekly-analysis.
type WeeklyAnalysis struct {
	CategoryBreakdown       []CategoryBreakdown `json:"categoryBreakdown"`
	HighestEmissionCategory string              `json:"highestEmissionCategory"`
	TotalWeeklyEmissions    float64             `json:"totalWeeklyEmissions"`
	ActivitiesThisWeek      int                 `json:"activitiesThisWeek"`
	WeeklyTips              []string            `json:"weeklyTips"`
	Insights                []string            `json:"insights"`
}

// Recommendations is returned by GET /insights/recommendations.
type Recommendations struct {
	Recommendations []Tip `json:"recommendations"`
}

// TrendPoint is one sample of an emissions trend series.
type TrendPoint struct {
	Date      string  `json:"date"`
	Emissions float64 `json:"emissions"`
}

// Trends is returned by GET /insights/trends.
type Trends struct {
	Period int          `json:"period"`
	Points []TrendPoint `json:"trends"`
}

// GoalRequest is the body of POST /insights/set-emission-goal and
// POST /insights/set-weekly-goal.
type GoalRequest struct {
	TargetEmissions float64 `json:"targetEmissions" validate:"required,gt=0"`
	Category        string  `json:"category" validate:"required,oneof=transport energy food waste other all"`
	Timeframe       string  `json:"timeframe" validate:"required,oneof=weekly monthly"`
}

// Goal is an active emission goal.
type Goal struct {
	TargetEmissions float64 `json:"targetEmissions"`
	Category        string  `json:"category"`
	Timeframe       string  `json:"timeframe"`
}

// GoalProgress is the server-maintained running state of a goal.
type GoalProgress struct {
	CurrentEmissions   float64 `json:"currentEmissions"`
	RemainingBudget    float64 `json:"remainingBudget"`
	ProgressPercentage float64 `json:"progressPercentage"`
	DaysRemaining      int     `json:"daysRemaining"`
	IsOnTrack          bool    `json:"isOnTrack"`
	ActivitiesLogged   int     `json:"activitiesLogged"`
}

// GoalStatus is returned by GET /insights/emission-goal-progress and
// GET /insights/weekly-goal-progress.
type GoalStatus struct {
	HasActiveGoal bool         `json:"hasActiveGoal"`
	Goal          Goal         `json:"goal"`
	Progress      GoalProgress `json:"progress"`
}
