// Package preview turns in-progress form data into a preliminary impact
// figure and tip without persisting anything.
//
// Input changes are debounced; at most one preview request is in flight,
// and a result whose inputs have since changed is discarded by comparing a
// per-request generation counter.
package preview

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"ecotracker-client/internal/model"
)

// DebounceInterval is how long inputs must be quiescent before a preview
// request is issued.
const DebounceInterval = 500 * time.Millisecond

// Backend is the slice of the API façade the coordinator needs.
type Backend interface {
	CalculatePreview(ctx context.Context, req model.PreviewRequest) (*model.PreviewResponse, error)
	GetEmissionGoalProgress(ctx context.Context) (*model.GoalStatus, error)
}

// Inputs is the watched slice of the activity form. QuantityValue is the
// raw field text; it may not parse yet.
type Inputs struct {
	Category      string
	QuantityValue string
	QuantityUnit  string
	Details       model.ActivityDetails
}

// ready reports whether enough fields are filled to ask for a preview.
func (in Inputs) ready() (float64, bool) {
	if in.Category == "" || in.QuantityUnit == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(in.QuantityValue, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) || v <= 0 {
		return 0, false
	}
	return v, true
}

// Result is the coordinator's current output. Both fields are nil when the
// inputs are not ready or the last preview failed.
type Result struct {
	Preview *model.PreviewResponse
	Tip     *model.Tip
}

// Listener observes every applied or cleared result.
type Listener func(Result)

// Coordinator debounces input changes into preview requests.
type Coordinator struct {
	backend  Backend
	log      *zap.Logger
	debounce time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64
	current  Result
	listener Listener
}

// New creates a Coordinator with the standard debounce interval.
func New(backend Backend, log *zap.Logger) *Coordinator {
	return &Coordinator{backend: backend, log: log, debounce: DebounceInterval}
}

// NewWithDebounce creates a Coordinator with a custom interval.
func NewWithDebounce(backend Backend, log *zap.Logger, debounce time.Duration) *Coordinator {
	return &Coordinator{backend: backend, log: log, debounce: debounce}
}

// SetListener registers the single result observer.
func (c *Coordinator) SetListener(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = fn
}

// Current returns the latest applied result.
func (c *Coordinator) Current() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Update records an input change. The pending attempt, if any, is replaced
// rather than merged; the attempt runs after the debounce interval with the
// inputs as of the last change.
func (c *Coordinator) Update(in Inputs) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() { c.attempt(gen, in) })
	c.mu.Unlock()
}

// Stop cancels any pending attempt and invalidates in-flight responses.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// attempt runs one debounced preview. Errors are swallowed: the preview and
// tip are cleared and the form keeps working.
func (c *Coordinator) attempt(gen uint64, in Inputs) {
	value, ok := in.ready()
	if !ok {
		c.apply(gen, Result{})
		return
	}

	ctx := context.Background()

	// The goal snapshot is re-fetched per request so a goal edited while
	// the form is open classifies against its current progress.
	var status *model.GoalStatus
	if snapshot, err := c.backend.GetEmissionGoalProgress(ctx); err != nil {
		c.log.Warn("goal snapshot fetch failed", zap.Error(err))
	} else {
		status = snapshot
	}

	resp, err := c.backend.CalculatePreview(ctx, model.PreviewRequest{
		ActivityType: in.Category,
		Quantity:     model.Quantity{Value: value, Unit: in.QuantityUnit},
		Details:      in.Details,
	})
	if err != nil {
		c.log.Warn("preview failed", zap.Error(err))
		c.apply(gen, Result{})
		return
	}

	tip := Classify(in.Category, in.Details, resp.CalculatedCarbonFootprint, status)
	c.apply(gen, Result{Preview: resp, Tip: tip})
}

// apply installs a result unless its generation has been superseded.
func (c *Coordinator) apply(gen uint64, r Result) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.current = r
	fn := c.listener
	c.mu.Unlock()

	if fn != nil {
		fn(r)
	}
}

// Classify derives the preliminary tip from the previewed carbon figure and
// the active goal snapshot. It is a pure function; nil means no tip.
func Classify(category string, details model.ActivityDetails, carbon float64, status *model.GoalStatus) *model.Tip {
	if status == nil || !status.HasActiveGoal {
		if carbon < 1 {
			return lowCarbonTip()
		}
		return nil
	}

	projected := status.Progress.CurrentEmissions + carbon
	remaining := status.Progress.RemainingBudget

	switch {
	case projected > status.Goal.TargetEmissions:
		excess := projected - status.Goal.TargetEmissions
		return &model.Tip{
			Type:  "warning",
			Title: "Budget Alert!",
			Message: fmt.Sprintf("This activity would put you %.1f kg CO₂ over your %s goal.",
				excess, status.Goal.Timeframe),
			Suggestions: alternativeSuggestions(category),
			Actionable:  true,
		}
	case carbon > remaining*0.5:
		share := 0.0
		if remaining > 0 {
			share = carbon / remaining * 100
		}
		return &model.Tip{
			Type:        "alert",
			Title:       "High Impact Activity",
			Message:     fmt.Sprintf("This uses %.0f%% of your remaining budget.", share),
			Suggestions: optimizationSuggestions(category, details),
			Actionable:  true,
		}
	case carbon < 1:
		return lowCarbonTip()
	default:
		return nil
	}
}

func lowCarbonTip() *model.Tip {
	return &model.Tip{
		Type:        "success",
		Title:       "Low Carbon Choice!",
		Message:     "Great choice! This activity has minimal environmental impact.",
		Suggestions: []string{},
	}
}

var alternatives = map[string][]string{
	model.CategoryTransport: {"Walk or cycle instead", "Use public transport", "Combine trips"},
	model.CategoryFood:      {"Try plant-based option", "Choose local produce", "Smaller portion"},
	model.CategoryEnergy:    {"Use LED lighting", "Lower thermostat", "Unplug devices"},
	model.CategoryWaste:     {"Recycle if possible", "Compost organic waste", "Reduce packaging"},
}

func alternativeSuggestions(category string) []string {
	if s, ok := alternatives[category]; ok {
		return s
	}
	return []string{"Consider eco-friendly alternatives"}
}

// optimizationSuggestions narrows by detail where a sharper refinement
// exists, then falls back to the category alternatives.
func optimizationSuggestions(category string, details model.ActivityDetails) []string {
	if category == model.CategoryTransport && details.TransportMode == "car_gasoline" {
		return []string{"Consider carpooling", "Plan efficient route", "Use hybrid next time"}
	}
	if category == model.CategoryFood && details.FoodType == "beef" {
		return []string{"Try chicken instead", "Reduce portion size", "Add more vegetables"}
	}
	return []string{"Look for more efficient options"}
}
