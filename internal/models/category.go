package models

import "time"

// CalculationType is the closed enumeration of hour-award formulas.
type CalculationType string

const (
	CalcFixedPerSemester CalculationType = "fixed_per_semester"
	CalcFixedPerActivity CalculationType = "fixed_per_activity"
	CalcRatioHours       CalculationType = "ratio_hours"
	CalcRatioDays        CalculationType = "ratio_days"
	CalcRatioPages       CalculationType = "ratio_pages"
)

// Valid reports whether c is a known calculation type.
func (c CalculationType) Valid() bool {
	switch c {
	case CalcFixedPerSemester, CalcFixedPerActivity, CalcRatioHours, CalcRatioDays, CalcRatioPages:
		return true
	}
	return false
}

// ActivityCategory is static reference data seeded once and loaded into an
// immutable in-memory snapshot at startup. Never mutated at runtime.
type ActivityCategory struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	CalculationType CalculationType `db:"calculation_type" json:"calculation_type"`
	InputUnit       string          `db:"input_unit" json:"input_unit"`
	InputQuantity   int             `db:"input_quantity" json:"input_quantity"`
	OutputHours     int             `db:"output_hours" json:"output_hours"`
	MaxTotalHours   int             `db:"max_total_hours" json:"max_total_hours"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}
