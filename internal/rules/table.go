package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/certhours/cert-hours-api/internal/models"
)

// Table is an immutable, versioned snapshot of the activity category rules.
// It is loaded once at startup; re-seeding the database requires building a
// new Table, never mutating an existing one, so concurrent readers always see
// a consistent rule set.
type Table struct {
	version string
	ordered []models.ActivityCategory
	byID    map[string]models.ActivityCategory
	byName  map[string]models.ActivityCategory
}

// NewTable builds a snapshot from the seeded categories. Later duplicates of
// a normalized name are ignored; the first seeded rule wins.
func NewTable(version string, categories []models.ActivityCategory) *Table {
	t := &Table{
		version: version,
		ordered: make([]models.ActivityCategory, len(categories)),
		byID:    make(map[string]models.ActivityCategory, len(categories)),
		byName:  make(map[string]models.ActivityCategory, len(categories)),
	}
	copy(t.ordered, categories)
	for _, cat := range categories {
		t.byID[cat.ID] = cat
		key := Normalize(cat.Name)
		if _, exists := t.byName[key]; !exists {
			t.byName[key] = cat
		}
	}
	return t
}

// Version identifies the snapshot.
func (t *Table) Version() string {
	return t.version
}

// Len returns the number of rules in the snapshot.
func (t *Table) Len() int {
	return len(t.ordered)
}

// All returns a copy of the rules in seed order.
func (t *Table) All() []models.ActivityCategory {
	out := make([]models.ActivityCategory, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// ByID looks a category up by identifier.
func (t *Table) ByID(id string) (models.ActivityCategory, bool) {
	cat, ok := t.byID[id]
	return cat, ok
}

// Resolve maps a model-proposed category name onto a seeded rule using
// case- and accent-insensitive matching. There is no fuzzy fallback: an
// unresolved name is reported as missing, never defaulted.
func (t *Table) Resolve(name string) (models.ActivityCategory, bool) {
	cat, ok := t.byName[Normalize(name)]
	return cat, ok
}

var accentStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases, strips diacritics and collapses whitespace so that
// "Participação em Palestras" and "participacao  em palestras" compare equal.
func Normalize(s string) string {
	stripped, _, err := transform.String(accentStripper, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}
