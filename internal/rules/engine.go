package rules

import "github.com/certhours/cert-hours-api/internal/models"

// Quantity carries the measured amounts extracted from a certificate. A nil
// field means the unit was not reported.
type Quantity struct {
	Hours *int
	Days  *int
	Pages *int
}

// Award computes the hours credited for one qualifying activity. It is a pure
// function of the category rule, the measured quantity and the hours the
// student already has approved in this category.
//
// Ratio formulas truncate toward zero (floor), never round up, so a student
// is never over-credited. The result is clamped to the remaining headroom
// under the category's max_total_hours; an exhausted category awards zero,
// which is a valid outcome rather than an error.
func Award(cat models.ActivityCategory, q Quantity, approvedInCategory int) int {
	var computed int

	switch cat.CalculationType {
	case models.CalcFixedPerSemester, models.CalcFixedPerActivity:
		computed = cat.OutputHours
	case models.CalcRatioHours:
		computed = ratio(q.Hours, cat)
	case models.CalcRatioDays:
		computed = ratio(q.Days, cat)
	case models.CalcRatioPages:
		computed = ratio(q.Pages, cat)
	default:
		return 0
	}

	return clamp(computed, cat.MaxTotalHours, approvedInCategory)
}

// QuantityFor maps the single measured figure a certificate reports onto the
// unit the category's formula consumes.
func QuantityFor(cat models.ActivityCategory, measured *int) Quantity {
	switch cat.CalculationType {
	case models.CalcRatioDays:
		return Quantity{Days: measured}
	case models.CalcRatioPages:
		return Quantity{Pages: measured}
	default:
		return Quantity{Hours: measured}
	}
}

func ratio(measured *int, cat models.ActivityCategory) int {
	if measured == nil || *measured <= 0 || cat.InputQuantity <= 0 {
		return 0
	}
	return (*measured / cat.InputQuantity) * cat.OutputHours
}

func clamp(computed, maxTotal, approved int) int {
	if computed <= 0 {
		return 0
	}
	remaining := maxTotal - approved
	if remaining <= 0 {
		return 0
	}
	if computed > remaining {
		return remaining
	}
	return computed
}
