// Package entry owns the activity form lifecycle: it drives the preview
// coordinator, validates drafts, submits them, and relays server tips.
package entry

import (
	"context"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ecotracker-client/internal/apperror"
	"ecotracker-client/internal/model"
	"ecotracker-client/internal/preview"
)

// Backend is the slice of the API façade the controller needs.
type Backend interface {
	preview.Backend
	CreateActivity(ctx context.Context, draft model.ActivityDraft) (*model.CreateActivityResponse, error)
}

// Form is the in-progress activity draft. QuantityValue holds the raw field
// text until submit.
type Form struct {
	ActivityName  string
	ActivityType  string
	Description   string
	QuantityValue string
	QuantityUnit  string
	Details       model.ActivityDetails
}

// SavedEvent is the host-visible notification emitted after a successful
// submit.
type SavedEvent struct {
	Activity  model.Activity
	ServerTip *model.Tip
}

// SavedListener observes saved activities.
type SavedListener func(SavedEvent)

// Controller orchestrates the form.
type Controller struct {
	api      Backend
	coord    *preview.Coordinator
	validate *validator.Validate
	log      *zap.Logger

	mu      sync.Mutex
	form    Form
	onSaved SavedListener
}

// New creates a Controller with its own preview coordinator.
func New(api Backend, log *zap.Logger) *Controller {
	return &Controller{
		api:      api,
		coord:    preview.New(api, log),
		validate: NewValidator(),
		log:      log,
	}
}

// Preview exposes the coordinator so hosts can observe results.
func (c *Controller) Preview() *preview.Coordinator {
	return c.coord
}

// OnSaved registers the saved-activity listener.
func (c *Controller) OnSaved(fn SavedListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSaved = fn
}

// Open fetches the emission-goal snapshot for display. A fetch failure is
// not fatal; the preview coordinator re-fetches its own snapshot per
// request anyway.
func (c *Controller) Open(ctx context.Context) *model.GoalStatus {
	status, err := c.api.GetEmissionGoalProgress(ctx)
	if err != nil {
		c.log.Warn("goal status fetch failed", zap.Error(err))
		return nil
	}
	return status
}

// SetForm replaces the form state and feeds the watched fields to the
// preview coordinator.
func (c *Controller) SetForm(f Form) {
	c.mu.Lock()
	c.form = f
	c.mu.Unlock()

	c.coord.Update(preview.Inputs{
		Category:      f.ActivityType,
		QuantityValue: f.QuantityValue,
		QuantityUnit:  f.QuantityUnit,
		Details:       f.Details,
	})
}

// Form returns a copy of the current form state.
func (c *Controller) Form() Form {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form
}

// Submit validates and persists the draft. Validation failures return
// apperror.ValidationErrors before any network call; submit failures leave
// the form intact. On success the form is reset and the saved notification
// fires with the persisted activity and any server tip.
func (c *Controller) Submit(ctx context.Context) (*SavedEvent, error) {
	c.mu.Lock()
	form := c.form
	c.mu.Unlock()

	draft := draftFrom(form)
	if err := c.validate.Struct(draft); err != nil {
		c.log.Warn("draft validation failed", zap.Error(err))
		return nil, apperror.CustomValidationError(err)
	}

	resp, err := c.api.CreateActivity(ctx, draft)
	if err != nil {
		c.log.Error("activity submit failed", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.form = Form{}
	fn := c.onSaved
	c.mu.Unlock()
	c.coord.Stop()

	saved := SavedEvent{Activity: resp.Activity, ServerTip: resp.RealTimeTip}
	c.log.Info("activity saved",
		zap.String("id", resp.Activity.ID),
		zap.Float64("impact", resp.Activity.CalculatedCarbonFootprint))
	if fn != nil {
		fn(saved)
	}
	return &saved, nil
}

func draftFrom(f Form) model.ActivityDraft {
	value, _ := strconv.ParseFloat(f.QuantityValue, 64)
	return model.ActivityDraft{
		ActivityName: f.ActivityName,
		ActivityType: f.ActivityType,
		Description:  f.Description,
		Quantity:     model.Quantity{Value: value, Unit: f.QuantityUnit},
		Details:      f.Details,
	}
}

// NewValidator builds the draft validator: field tags plus the
// category-coupled rules (permitted unit, required category detail).
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(draftStructValidation, model.ActivityDraft{})
	return v
}

func draftStructValidation(sl validator.StructLevel) {
	draft := sl.Current().Interface().(model.ActivityDraft)

	if draft.Quantity.Unit != "" && draft.ActivityType != "" &&
		!model.UnitPermitted(draft.ActivityType, draft.Quantity.Unit) {
		sl.ReportError(draft.Quantity.Unit, "Quantity.Unit", "Quantity.Unit", "unitfor", "")
	}

	switch draft.ActivityType {
	case model.CategoryTransport:
		if draft.Details.TransportMode == "" {
			sl.ReportError(draft.Details.TransportMode, "Details.TransportMode", "Details.TransportMode", "requiredfor", "")
		}
	case model.CategoryEnergy:
		if draft.Details.EnergySource == "" {
			sl.ReportError(draft.Details.EnergySource, "Details.EnergySource", "Details.EnergySource", "requiredfor", "")
		}
	case model.CategoryFood:
		if draft.Details.FoodType == "" {
			sl.ReportError(draft.Details.FoodType, "Details.FoodType", "Details.FoodType", "requiredfor", "")
		}
	case model.CategoryWaste:
		if draft.Details.WasteType == "" {
			sl.ReportError(draft.Details.WasteType, "Details.WasteType", "Details.WasteType", "requiredfor", "")
		}
	}
}
