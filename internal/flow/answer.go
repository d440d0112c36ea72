package flow

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/paulexconde/surveyflow/pkg/fault"
)

const (
	MaxTextLength = 5000

	defaultRatingMin = 1
	defaultRatingMax = 5

	dateLayout = "2006-01-02"
)

// Value is a validated answer. Which fields are set depends on the question type.
type Value struct {
	// Empty marks a skipped optional question.
	Empty      bool       `json:"empty,omitempty"`
	Text       string     `json:"text,omitempty"`
	Selections []string   `json:"selections,omitempty"`
	Number     *float64   `json:"number,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Location   *GeoPoint  `json:"location,omitempty"`
}

// GeoPoint is a shared location. Accuracy is in meters, Timestamp in unix seconds.
type GeoPoint struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}

// Value stores the answer as json, for jsonb columns.
func (v Value) Value() (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (v *Value) Scan(src any) error {
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, v)
	case string:
		return json.Unmarshal([]byte(data), v)
	default:
		return fmt.Errorf("cannot scan %T into an answer value", src)
	}
}

// ValidateAnswer checks raw input against q's type rules and returns the
// parsed value. Errors are validation faults naming the offending field;
// input that cannot be parsed at all also wraps fault.ErrMalformedAnswer.
func ValidateAnswer(q *Question, options []Option, raw json.RawMessage) (Value, error) {
	s, ok := strategies[q.Type]
	if !ok {
		return Value{}, fault.NewValidationError("type", fmt.Sprintf("unsupported question type %d", int(q.Type)), nil)
	}

	if isEmptyInput(raw) {
		if q.Required {
			return Value{}, fault.NewValidationError("answer", "answer is required", nil)
		}
		return Value{Empty: true}, nil
	}

	v, err := s.validate(q, options, raw)
	if err != nil {
		return Value{}, err
	}

	if q.Constraint != "" {
		if err := checkConstraint(q, v); err != nil {
			return Value{}, err
		}
	}

	return v, nil
}

func isEmptyInput(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "[]", "{}":
		return true
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return strings.TrimSpace(s) == ""
		}
	}

	return false
}

func malformed(field, msg string) error {
	return fault.NewValidationError(field, msg, fault.ErrMalformedAnswer)
}

func validateText(_ *Question, _ []Option, raw json.RawMessage) (Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Value{}, malformed("text", "answer must be a string")
	}

	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n > MaxTextLength {
		return Value{}, fault.NewValidationError("text", fmt.Sprintf("answer is %d characters, at most %d allowed", n, MaxTextLength), nil)
	}

	return Value{Text: s}, nil
}

// parseSelections accepts a single string or an array of strings.
func parseSelections(raw json.RawMessage) ([]string, error) {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}, nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, malformed("selection", "selection must be a string or a list of strings")
	}
	return many, nil
}

func findOption(options []Option, text string) bool {
	for _, o := range options {
		if o.Text == text {
			return true
		}
	}
	return false
}

func validateSingleChoice(_ *Question, options []Option, raw json.RawMessage) (Value, error) {
	selections, err := parseSelections(raw)
	if err != nil {
		return Value{}, err
	}
	if len(selections) != 1 {
		return Value{}, fault.NewValidationError("selection", fmt.Sprintf("exactly one selection required, got %d", len(selections)), nil)
	}
	if !findOption(options, selections[0]) {
		return Value{}, fault.NewValidationError("selection", fmt.Sprintf("option %q", selections[0]), fault.ErrUnknownOption)
	}
	return Value{Selections: selections}, nil
}

// Duplicate selections are rejected rather than collapsed.
func validateMultipleChoice(_ *Question, options []Option, raw json.RawMessage) (Value, error) {
	selections, err := parseSelections(raw)
	if err != nil {
		return Value{}, err
	}
	if len(selections) == 0 {
		return Value{}, fault.NewValidationError("selection", "at least one selection required", nil)
	}

	seen := make(map[string]struct{}, len(selections))
	for _, s := range selections {
		if _, dup := seen[s]; dup {
			return Value{}, fault.NewValidationError("selection", fmt.Sprintf("option %q selected more than once", s), nil)
		}
		seen[s] = struct{}{}

		if !findOption(options, s) {
			return Value{}, fault.NewValidationError("selection", fmt.Sprintf("option %q", s), fault.ErrUnknownOption)
		}
	}

	return Value{Selections: selections}, nil
}

// parseNumber accepts a JSON number or a string holding one.
func parseNumber(raw json.RawMessage, field string) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, malformed(field, "must be a number")
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, malformed(field, "must be a number")
		}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, malformed(field, "must be a finite number")
	}
	return f, nil
}

func checkRange(field string, f float64, min, max *float64) error {
	if min != nil && f < *min {
		return fault.NewValidationError(field, fmt.Sprintf("must be at least %v", *min), nil)
	}
	if max != nil && f > *max {
		return fault.NewValidationError(field, fmt.Sprintf("must be at most %v", *max), nil)
	}
	return nil
}

// ratingBounds returns the inclusive range a rating question accepts.
func ratingBounds(q *Question) (int64, int64) {
	lo, hi := int64(defaultRatingMin), int64(defaultRatingMax)
	if q.Min != nil {
		lo = int64(math.Ceil(*q.Min))
	}
	if q.Max != nil {
		hi = int64(math.Floor(*q.Max))
	}
	return lo, hi
}

func validateRating(q *Question, _ []Option, raw json.RawMessage) (Value, error) {
	f, err := parseNumber(raw, "rating")
	if err != nil {
		return Value{}, err
	}
	if f != math.Trunc(f) {
		return Value{}, fault.NewValidationError("rating", "must be a whole number", nil)
	}

	lo, hi := ratingBounds(q)
	if f < float64(lo) || f > float64(hi) {
		return Value{}, fault.NewValidationError("rating", fmt.Sprintf("must be between %d and %d", lo, hi), nil)
	}

	return Value{Number: &f}, nil
}

func validateNumber(q *Question, _ []Option, raw json.RawMessage) (Value, error) {
	f, err := parseNumber(raw, "number")
	if err != nil {
		return Value{}, err
	}
	if err := checkRange("number", f, q.Min, q.Max); err != nil {
		return Value{}, err
	}
	return Value{Number: &f}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func validateDate(q *Question, _ []Option, raw json.RawMessage) (Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Value{}, malformed("date", "date must be a string")
	}

	t, err := parseDate(s)
	if err != nil {
		return Value{}, malformed("date", fmt.Sprintf("date must look like %s", dateLayout))
	}

	if q.MinDate != nil && t.Before(*q.MinDate) {
		return Value{}, fault.NewValidationError("date", "must not be before "+q.MinDate.Format(dateLayout), nil)
	}
	if q.MaxDate != nil && t.After(*q.MaxDate) {
		return Value{}, fault.NewValidationError("date", "must not be after "+q.MaxDate.Format(dateLayout), nil)
	}

	return Value{Date: &t}, nil
}

func validateLocation(_ *Question, _ []Option, raw json.RawMessage) (Value, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Value{}, malformed("location", "location must be an object")
	}

	required := func(name string) (float64, error) {
		v, ok := fields[name]
		if !ok || isEmptyInput(v) {
			return 0, malformed(name, "is required")
		}
		return parseNumber(v, name)
	}

	lat, err := required("latitude")
	if err != nil {
		return Value{}, err
	}
	lng, err := required("longitude")
	if err != nil {
		return Value{}, err
	}

	if lat < -90 || lat > 90 {
		return Value{}, fault.NewValidationError("latitude", "must be between -90 and 90", nil)
	}
	if lng < -180 || lng > 180 {
		return Value{}, fault.NewValidationError("longitude", "must be between -180 and 180", nil)
	}

	point := &GeoPoint{Latitude: lat, Longitude: lng}

	if v, ok := fields["accuracy"]; ok && !isEmptyInput(v) {
		acc, err := parseNumber(v, "accuracy")
		if err != nil {
			return Value{}, err
		}
		if acc < 0 {
			return Value{}, fault.NewValidationError("accuracy", "must not be negative", nil)
		}
		point.Accuracy = &acc
	}

	if v, ok := fields["timestamp"]; ok && !isEmptyInput(v) {
		ts, err := parseNumber(v, "timestamp")
		if err != nil {
			return Value{}, err
		}
		if ts < 0 || ts != math.Trunc(ts) {
			return Value{}, fault.NewValidationError("timestamp", "must be a non-negative unix time", nil)
		}
		sec := int64(ts)
		point.Timestamp = &sec
	}

	return Value{Location: point}, nil
}

func choiceSelection(v Value) (string, bool) {
	if len(v.Selections) != 1 {
		return "", false
	}
	return v.Selections[0], true
}

func ratingSelection(v Value) (string, bool) {
	if v.Number == nil {
		return "", false
	}
	return strconv.FormatInt(int64(*v.Number), 10), true
}
