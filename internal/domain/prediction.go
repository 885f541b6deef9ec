package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Disclaimer is shown when the backend supplies no caveat text of its own.
const Disclaimer = "This is an AI-based preliminary assessment. Please consult a dermatologist for medical advice."

// PredictionResult is the normalized outcome of one inference call. It lives
// only in memory for the current screening session.
type PredictionResult struct {
	Label      string
	Confidence float64
	Details    string
}

// ParsePrediction normalizes a backend response body into a PredictionResult.
// Field precedence: "label" over "prediction" (strings), "confidence" over
// "probability" (numbers), "details" over "message" (strings). A missing or
// wrong-typed candidate falls through to the next one and finally to the
// defaults: "Unknown", 0 and Disclaimer. Only an undecodable body is an error.
func ParsePrediction(data []byte) (PredictionResult, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return PredictionResult{}, fmt.Errorf("decode prediction: %w", err)
	}

	res := PredictionResult{Label: "Unknown", Details: Disclaimer}
	if s, ok := stringField(payload, "label"); ok {
		res.Label = s
	} else if s, ok := stringField(payload, "prediction"); ok {
		res.Label = s
	}
	if f, ok := numberField(payload, "confidence"); ok {
		res.Confidence = f
	} else if f, ok := numberField(payload, "probability"); ok {
		res.Confidence = f
	}
	if s, ok := stringField(payload, "details"); ok {
		res.Details = s
	} else if s, ok := stringField(payload, "message"); ok {
		res.Details = s
	}
	return res, nil
}

func stringField(m map[string]any, key string) (string, bool) {
	s, ok := m[key].(string)
	return s, ok
}

func numberField(m map[string]any, key string) (float64, bool) {
	f, ok := m[key].(float64)
	return f, ok
}

// IsBenign reports whether a label gets the benign presentation. The check is
// a case-insensitive substring match; anything else gets the warning styling.
func IsBenign(label string) bool {
	return strings.Contains(strings.ToLower(label), "benign")
}

// FormatConfidence renders a [0,1] confidence as a percentage with one
// decimal, e.g. 0.8234 -> "82.3%".
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c*100, 'f', 1, 64) + "%"
}
