// Package model defines the activity, goal, and tip shapes exchanged with
// the backend.
package model

import "time"

// Activity categories.
const (
	CategoryTransport = "transport"
	CategoryEnergy    = "energy"
	CategoryFood      = "food"
	CategoryWaste     = "waste"
	CategoryOther     = "other"

	// CategoryAll is the filter sentinel meaning "no category filter".
	CategoryAll = "all"
)

// Quantity is an amount with its unit code.
type Quantity struct {
	Value float64 `json:"value" validate:"required,gt=0"`
	Unit  string  `json:"unit" validate:"required"`
}

// ActivityDetails carries the category-specific attributes. Exactly one of
// the fields is meaningful for a given category; the rest stay empty and are
// omitted on the wire.
type ActivityDetails struct {
	TransportMode  string `json:"transportMode,omitempty"`
	EnergySource   string `json:"energySource,omitempty"`
	FoodType       string `json:"foodType,omitempty"`
	WasteType      string `json:"wasteType,omitempty"`
	DisposalMethod string `json:"disposalMethod,omitempty"`
}

// ActivityDraft is the client-side shape submitted to create or update an
// activity. The carbon footprint is computed by the backend.
type ActivityDraft struct {
	ActivityName string          `json:"activityName" validate:"required"`
	ActivityType string          `json:"activityType" validate:"required,oneof=transport energy food waste other"`
	Description  string          `json:"description" validate:"required"`
	Quantity     Quantity        `json:"quantity"`
	Details      ActivityDetails `json:"activityDetails"`
	Date         string          `json:"date,omitempty"`
}

// Activity is a persisted activity as returned by the backend.
type Activity struct {
	ID                        string          `json:"_id"`
	ActivityName              string          `json:"activityName"`
	ActivityType              string          `json:"activityType"`
	Description               string          `json:"description"`
	Quantity                  Quantity        `json:"quantity"`
	Details                   ActivityDetails `json:"activityDetails"`
	Date                      time.Time       `json:"date"`
	CalculatedCarbonFootprint float64         `json:"calculatedCarbonFootprint"`
}

// Tip is a short classified recommendation. Type is one of success, info,
// alert, warning.
type Tip struct {
	Type        string       `json:"type"`
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	Suggestions []string     `json:"suggestions"`
	Actionable  bool         `json:"actionable"`
	Activity    *TipActivity `json:"activity,omitempty"`
}

// TipActivity is the optional activity context attached to a tip.
type TipActivity struct {
	Name      string  `json:"name"`
	Emissions float64 `json:"emissions"`
}

// quantityUnits maps each category to its permitted unit codes.
var quantityUnits = map[string][]string{
	CategoryTransport: {"km", "miles", "m"},
	CategoryEnergy:    {"kWh", "MWh", "BTU"},
	CategoryFood:      {"kg", "lbs", "g", "servings"},
	CategoryWaste:     {"kg", "lbs", "g"},
	CategoryOther:     {"items", "pieces", "hours", "days"},
}

// UnitsForCategory returns the unit codes permitted for a category. Unknown
// categories fall back to the "other" units.
func UnitsForCategory(category string) []string {
	if units, ok := quantityUnits[category]; ok {
		return units
	}
	return quantityUnits[CategoryOther]
}

// UnitPermitted reports whether unit is valid for the category.
func UnitPermitted(category, unit string) bool {
	for _, u := range UnitsForCategory(category) {
		if u == unit {
			return true
		}
	}
	return false
}

// TransportModes are the recognized transportMode detail values.
var TransportModes = []string{
	"car_gasoline", "car_diesel", "car_hybrid", "car_electric",
	"motorcycle", "bus", "train", "plane_domestic", "plane_international",
	"bicycle", "walking",
}

// EnergySources are the recognized energySource detail values.
var EnergySources = []string{
	"grid_average", "coal", "natural_gas", "nuclear", "solar", "wind", "hydro",
}

// FoodTypes are the recognized foodType detail values.
var FoodTypes = []string{
	"beef", "dairy_cheese", "pork", "chicken", "fish",
	"processed_food", "dairy_milk", "vegetables", "grains", "fruits",
}

// WasteTypes are the recognized wasteType detail values.
var WasteTypes = []string{"general_waste", "hazardous", "compost", "recycling"}

// DisposalMethods are the recognized disposalMethod detail values.
var DisposalMethods = []string{"landfill", "incineration", "recycling", "composting"}
