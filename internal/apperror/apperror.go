// Package apperror defines the client error taxonomy and maps validator
// errors into per-field messages.
package apperror

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Sentinel errors for the failure classes that callers branch on.
var (
	// ErrAuthExpired marks a 401 from HTTP or an authentication-error
	// event from the socket. The credential has already been cleared by
	// the time a caller sees this.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNetworkFailure marks a transport or timeout error with no HTTP
	// status. Retriable at the caller's discretion.
	ErrNetworkFailure = errors.New("network failure")

	// ErrChannelTerminal marks an event channel that exhausted its
	// reconnect attempts or was shut down by the server. Only an explicit
	// force-reconnect resumes delivery.
	ErrChannelTerminal = errors.New("event channel terminal")
)

// APIError carries a non-2xx HTTP response. Status 5xx is transient and may
// be retried by the caller; 4xx is not.
type APIError struct {
	Status  int
	Body    map[string]any
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// IsServerError reports whether the response class is 5xx.
func (e *APIError) IsServerError() bool {
	return e.Status >= 500
}

var (
	errRequired         = errors.New("is required")
	errMustBePositive   = errors.New("must be greater than zero")
	errUnknownCategory  = errors.New("must be one of transport, energy, food, waste, other")
	errMissingMode      = errors.New("transport mode is required for transport activities")
	errMissingSource    = errors.New("energy source is required for energy activities")
	errMissingFoodType  = errors.New("food type is required for food activities")
	errMissingWasteType = errors.New("waste type is required for waste activities")
	errUnitNotPermitted = errors.New("unit is not valid for the chosen category")
)

var customErrors = map[string]error{
	"ActivityDraft.ActivityName.required":             errRequired,
	"ActivityDraft.ActivityType.required":             errRequired,
	"ActivityDraft.ActivityType.oneof":                errUnknownCategory,
	"ActivityDraft.Description.required":              errRequired,
	"ActivityDraft.Quantity.Value.required":           errRequired,
	"ActivityDraft.Quantity.Value.gt":                 errMustBePositive,
	"ActivityDraft.Quantity.Unit.required":            errRequired,
	"ActivityDraft.Quantity.Unit.unitfor":             errUnitNotPermitted,
	"ActivityDraft.Details.TransportMode.requiredfor": errMissingMode,
	"ActivityDraft.Details.EnergySource.requiredfor":  errMissingSource,
	"ActivityDraft.Details.FoodType.requiredfor":      errMissingFoodType,
	"ActivityDraft.Details.WasteType.requiredfor":     errMissingWasteType,
}

// ValidationErrors is a per-field message list produced before any network
// call. It never leaves the entry controller's callers.
type ValidationErrors []map[string]string

func (v ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(v))
}

// CustomValidationError converts validator errors into a standardized
// per-field format.
func CustomValidationError(err error) ValidationErrors {
	errList := make(ValidationErrors, 0)

	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		for _, e := range validationErr {
			field := e.StructNamespace()
			key := field + "." + e.Tag()

			errMsg := fmt.Sprintf("%s is invalid", field)
			if v, ok := customErrors[key]; ok {
				errMsg = v.Error()
			}

			errList = append(errList, map[string]string{e.Field(): errMsg})
		}
	}
	return errList
}
