// Package normalize cleans raw row batches into typed, keyed records.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/courtsift/statscrape/models"
)

// dateFormats is the ordered list of layouts tried for date fields. A value
// matching none of them becomes null rather than an error.
var dateFormats = []string{
	"01/02/2006",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/06",
}

// KeyMissingError marks a row that cannot be identified: a required key field
// is missing or empty after coercion. Such rows are excluded from the batch
// and counted, never silently dropped.
type KeyMissingError struct {
	Field     string
	SourceURL string
	Page      int
}

func (e *KeyMissingError) Error() string {
	return fmt.Sprintf("row on %s page %d: key field %q missing or empty", e.SourceURL, e.Page, e.Field)
}

// Normalizer applies one category's field rules to raw rows. Header aliases
// are resolved once at construction instead of per cell.
type Normalizer struct {
	desc    *models.CategoryDescriptor
	aliases map[string]string // lowercase scraped header -> canonical name
}

// New builds a normalizer for a category descriptor. The descriptor must
// already be validated.
func New(desc *models.CategoryDescriptor) *Normalizer {
	aliases := make(map[string]string)
	for _, f := range desc.Fields {
		aliases[f.Name] = f.Name
		for _, a := range f.Aliases {
			aliases[strings.ToLower(strings.TrimSpace(a))] = f.Name
		}
	}
	return &Normalizer{desc: desc, aliases: aliases}
}

// Result is the outcome of normalizing one batch.
type Result struct {
	Records  []*models.Record
	Excluded int // rows rejected for a missing natural key
	Errors   []error
}

// Batch normalizes all rows of one work item. Key-missing rows are excluded
// and reported through the result; they never abort the batch.
func (n *Normalizer) Batch(rows []models.RawRow, item models.WorkItem, now time.Time) *Result {
	res := &Result{Records: make([]*models.Record, 0, len(rows))}
	for i := range rows {
		rec, err := n.Row(&rows[i], item, now)
		if err != nil {
			res.Excluded++
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// Row normalizes a single raw row: canonical field names, typed values, and
// metadata stamping. The only error condition is a missing natural key.
func (n *Normalizer) Row(row *models.RawRow, item models.WorkItem, now time.Time) (*models.Record, error) {
	fields := make(map[string]any, len(n.desc.Fields))

	for _, cell := range row.Cells {
		canonical, ok := n.aliases[strings.ToLower(strings.TrimSpace(cell.Column))]
		if !ok {
			continue // undeclared column, not part of the record shape
		}
		rule, _ := n.desc.Field(canonical)
		fields[canonical] = coerce(cell.Text, rule.Type)
	}

	// Declared fields absent from the row still appear, typed as zero values
	// so the stored shape is uniform across pages and seasons.
	for _, rule := range n.desc.Fields {
		if _, ok := fields[rule.Name]; !ok {
			fields[rule.Name] = zeroValue(rule.Type)
		}
	}

	key, err := n.naturalKey(row, item, fields)
	if err != nil {
		return nil, err
	}

	return &models.Record{
		Key:        key,
		EntityID:   row.EntityID,
		Season:     item.Season,
		SeasonType: item.SeasonType,
		Fields:     fields,
		SourceURL:  row.SourceURL,
		PageNumber: row.PageNumber,
		ScrapedAt:  now,
	}, nil
}

// naturalKey joins the descriptor's key fields. Key fields may name the
// extracted entity id, the work item's season coordinates, or any declared
// field; an empty component rejects the row.
func (n *Normalizer) naturalKey(row *models.RawRow, item models.WorkItem, fields map[string]any) (string, error) {
	parts := make([]string, 0, len(n.desc.KeyFields))
	for _, name := range n.desc.KeyFields {
		var part string
		switch name {
		case models.KeyEntityID:
			part = row.EntityID
		case models.KeySeason:
			part = item.Season
		case models.KeySeasonType:
			part = item.SeasonType
		default:
			part = stringValue(fields[name])
		}
		part = strings.TrimSpace(part)
		if part == "" {
			return "", &KeyMissingError{Field: name, SourceURL: row.SourceURL, Page: row.PageNumber}
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "|"), nil
}

// coerce converts cell text to the field's type. Numeric coercion strips
// percent signs and thousands separators first; integers parse through float
// so values published as "12.0" survive. Failures fall back to the type's
// zero value so one malformed cell never aborts a batch. Dates try the
// format list in order and fall back to null.
func coerce(text string, t models.FieldType) any {
	text = strings.TrimSpace(text)
	switch t {
	case models.FieldInt:
		f, err := strconv.ParseFloat(cleanNumeric(text), 64)
		if err != nil {
			return int64(0)
		}
		return int64(f)
	case models.FieldFloat:
		f, err := strconv.ParseFloat(cleanNumeric(text), 64)
		if err != nil {
			return float64(0)
		}
		return f
	case models.FieldDate:
		for _, layout := range dateFormats {
			if d, err := time.Parse(layout, text); err == nil {
				return d
			}
		}
		return nil
	default:
		return text
	}
}

func zeroValue(t models.FieldType) any {
	switch t {
	case models.FieldInt:
		return int64(0)
	case models.FieldFloat:
		return float64(0)
	case models.FieldDate:
		return nil
	default:
		return ""
	}
}

// cleanNumeric strips the decorations the site adds to numbers.
func cleanNumeric(text string) string {
	text = strings.ReplaceAll(text, "%", "")
	text = strings.ReplaceAll(text, ",", "")
	return strings.TrimSpace(text)
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case int64:
		return fmt.Sprintf("%d", value)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", value), "0"), ".")
	case time.Time:
		return value.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", value)
	}
}
