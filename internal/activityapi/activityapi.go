// Package activityapi exposes the backend's activity, dashboard, and
// insights operations as a stable named surface.
//
// Every operation builds its query string, serializes its body, and
// delegates to the transport client. Errors carry the transport taxonomy
// unchanged; nothing here retries.
package activityapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ecotracker-client/internal/model"
	"ecotracker-client/internal/transport"
)

// Service is the activity API façade.
type Service struct {
	client *transport.Client
}

// New creates a Service on top of the transport client.
func New(client *transport.Client) *Service {
	return &Service{client: client}
}

// CreateActivity persists a draft. The backend computes the carbon
// footprint and may attach a real-time tip. An empty draft date is filled
// with the current time in ISO form.
func (s *Service) CreateActivity(ctx context.Context, draft model.ActivityDraft) (*model.CreateActivityResponse, error) {
	if draft.Date == "" {
		draft.Date = time.Now().UTC().Format(time.RFC3339)
	}
	var out model.CreateActivityResponse
	if err := s.client.Do(ctx, http.MethodPost, "/activities", nil, draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListActivities returns activities matching the filters. Empty or
// whitespace filter values are omitted; the "all" category sentinel means
// no category filter.
func (s *Service) ListActivities(ctx context.Context, filters model.ActivityFilters) (*model.ListActivitiesResponse, error) {
	q := url.Values{}
	addFilter(q, "startDate", filters.StartDate)
	addFilter(q, "endDate", filters.EndDate)
	if filters.ActivityType != model.CategoryAll {
		addFilter(q, "activityType", filters.ActivityType)
	}
	addFilter(q, "activityName", filters.ActivityName)
	if filters.Page > 0 {
		q.Set("page", strconv.Itoa(filters.Page))
	}
	if filters.Limit > 0 {
		q.Set("limit", strconv.Itoa(filters.Limit))
	}

	var out model.ListActivitiesResponse
	if err := s.client.Do(ctx, http.MethodGet, "/activities", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActivity fetches a single activity by ID.
func (s *Service) GetActivity(ctx context.Context, id string) (*model.Activity, error) {
	var out model.Activity
	if err := s.client.Do(ctx, http.MethodGet, "/activities/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateActivity replaces an activity's fields; the footprint is
// recalculated by the backend.
func (s *Service) UpdateActivity(ctx context.Context, id string, draft model.ActivityDraft) (*model.Activity, error) {
	var out model.Activity
	if err := s.client.Do(ctx, http.MethodPut, "/activities/"+url.PathEscape(id), nil, draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteActivity removes an activity.
func (s *Service) DeleteActivity(ctx context.Context, id string) error {
	return s.client.Do(ctx, http.MethodDelete, "/activities/"+url.PathEscape(id), nil, nil, nil)
}

// CalculatePreview computes the impact of an unsaved draft.
func (s *Service) CalculatePreview(ctx context.Context, req model.PreviewRequest) (*model.PreviewResponse, error) {
	var out model.PreviewResponse
	if err := s.client.Do(ctx, http.MethodPost, "/activities/calculate-preview", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetActivityStats returns aggregates for the filtered range.
func (s *Service) GetActivityStats(ctx context.Context, filters model.StatsFilters) (*model.ActivityStats, error) {
	q := url.Values{}
	addFilter(q, "startDate", filters.StartDate)
	addFilter(q, "endDate", filters.EndDate)
	addFilter(q, "activityType", filters.ActivityType)

	var out model.ActivityStats
	if err := s.client.Do(ctx, http.MethodGet, "/activities/stats/summary", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEmissionFactors fetches the emission-factor reference table.
func (s *Service) GetEmissionFactors(ctx context.Context) (*model.EmissionFactors, error) {
	var out model.EmissionFactors
	if err := s.client.Do(ctx, http.MethodGet, "/activities/reference/emission-factors", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDashboard fetches the dashboard summary with community comparison.
func (s *Service) GetDashboard(ctx context.Context) (*model.Dashboard, error) {
	var out model.Dashboard
	if err := s.client.Do(ctx, http.MethodGet, "/dashboard", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStreak fetches streak and weekly tracking data.
func (s *Service) GetStreak(ctx context.Context) (*model.Streak, error) {
	var out model.Streak
	if err := s.client.Do(ctx, http.MethodGet, "/streak", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLeaderboard fetches the community ranking over the given period in
// days.
func (s *Service) GetLeaderboard(ctx context.Context, periodDays int) (*model.Leaderboard, error) {
	var out model.Leaderboard
	if err := s.client.Do(ctx, http.MethodGet, "/leaderboard", periodQuery(periodDays), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUserStats fetches per-user statistics over the given period in days.
func (s *Service) GetUserStats(ctx context.Context, periodDays int) (*model.UserStats, error) {
	var out model.UserStats
	if err := s.client.Do(ctx, http.MethodGet, "/stats", periodQuery(periodDays), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWeeklyAnalysis fetches the weekly category breakdown and insights.
func (s *Service) GetWeeklyAnalysis(ctx context.Context) (*model.WeeklyAnalysis, error) {
	var out model.WeeklyAnalysis
	if err := s.client.Do(ctx, http.MethodGet, "/insights/weekly-analysis", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRecommendations fetches personalized recommendations.
func (s *Service) GetRecommendations(ctx context.Context) (*model.Recommendations, error) {
	var out model.Recommendations
	if err := s.client.Do(ctx, http.MethodGet, "/insights/recommendations", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTrends fetches the emissions trend series over the given period in
// days.
func (s *Service) GetTrends(ctx context.Context, periodDays int) (*model.Trends, error) {
	var out model.Trends
	if err := s.client.Do(ctx, http.MethodGet, "/insights/trends", periodQuery(periodDays), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetEmissionGoal creates or replaces the active emission goal.
func (s *Service) SetEmissionGoal(ctx context.Context, req model.GoalRequest) (*model.GoalStatus, error) {
	var out model.GoalStatus
	if err := s.client.Do(ctx, http.MethodPost, "/insights/set-emission-goal", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetEmissionGoalProgress fetches the active goal and its progress.
func (s *Service) GetEmissionGoalProgress(ctx context.Context) (*model.GoalStatus, error) {
	var out model.GoalStatus
	if err := s.client.Do(ctx, http.MethodGet, "/insights/emission-goal-progress", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetWeeklyGoal creates or replaces the weekly reduction goal.
func (s *Service) SetWeeklyGoal(ctx context.Context, req model.GoalRequest) (*model.GoalStatus, error) {
	var out model.GoalStatus
	if err := s.client.Do(ctx, http.MethodPost, "/insights/set-weekly-goal", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWeeklyGoalProgress fetches the weekly goal and its progress.
func (s *Service) GetWeeklyGoalProgress(ctx context.Context) (*model.GoalStatus, error) {
	var out model.GoalStatus
	if err := s.client.Do(ctx, http.MethodGet, "/insights/weekly-goal-progress", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func periodQuery(days int) url.Values {
	q := url.Values{}
	if days > 0 {
		q.Set("period", strconv.Itoa(days))
	}
	return q
}

// addFilter sets key only when value carries non-whitespace content.
func addFilter(q url.Values, key, value string) {
	if strings.TrimSpace(value) != "" {
		q.Set(key, value)
	}
}
