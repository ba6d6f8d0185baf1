// Package validate implements the pure record validator and the bounded
// validate-and-repair loop shared by the extraction pipelines.
package validate

import (
	"math"
	"strings"

	"github.com/edgemed/edgemed/internal/models"
)

// CompletenessThreshold is the score at which a record is considered
// complete enough to stop repairing.
const CompletenessThreshold = 0.8

// MaxRepairAttempts bounds the repair loop (latency and cost cap).
const MaxRepairAttempts = 2

// RequiredFields are checked for presence and confidence.
var RequiredFields = []string{
	"chief_complaint",
	"hpi",
	"assessment",
	"plan",
	"medications",
	"allergies",
}

// CriticalFields weigh extra in the completeness score when missing.
var CriticalFields = []string{"medications", "allergies", "assessment"}

const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

var confidenceNumeric = map[string]float64{
	ConfidenceLow:    0.33,
	ConfidenceMedium: 0.66,
	ConfidenceHigh:   1.0,
}

// contradictionRule pairs a predicate with the message reported when it
// matches. A rule that panics is treated as non-matching.
type contradictionRule struct {
	matches func(r *models.ClinicalRecord) bool
	message string
}

var contradictionRules = []contradictionRule{
	{
		matches: func(r *models.ClinicalRecord) bool {
			return anyAllergyContains(r, "nkda") && len(r.Allergies) > 1
		},
		message: "States NKDA (no known drug allergies) but also lists specific allergies",
	},
	{
		matches: func(r *models.ClinicalRecord) bool {
			return anyMedicationContains(r, "none") && len(r.Medications) > 1
		},
		message: "States no medications but also lists specific medications",
	},
	{
		matches: func(r *models.ClinicalRecord) bool {
			return r.ChiefComplaint != "" && len(r.Assessment) > 0 && !chiefComplaintAddressed(r)
		},
		message: "Chief complaint not addressed in assessment",
	},
}

func anyAllergyContains(r *models.ClinicalRecord, s string) bool {
	for _, a := range r.Allergies {
		if strings.Contains(strings.ToLower(a.Substance), s) {
			return true
		}
	}
	return false
}

func anyMedicationContains(r *models.ClinicalRecord, s string) bool {
	for _, m := range r.Medications {
		if strings.Contains(strings.ToLower(m.Name), s) {
			return true
		}
	}
	return false
}

// chiefComplaintAddressed is a weak lexical-overlap heuristic: the chief
// complaint counts as addressed when it shares at least one token with any
// assessment-entry description. Known limitation, kept for compatibility
// with historical flags.
func chiefComplaintAddressed(r *models.ClinicalRecord) bool {
	if r.ChiefComplaint == "" || len(r.Assessment) == 0 {
		return true
	}
	ccWords := tokenSet(r.ChiefComplaint)
	for _, p := range r.Assessment {
		for w := range tokenSet(p.Description) {
			if _, ok := ccWords[w]; ok {
				return true
			}
		}
	}
	return false
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// fieldValue returns the value backing a required-field name.
func fieldValue(r *models.ClinicalRecord, field string) any {
	switch field {
	case "chief_complaint":
		return r.ChiefComplaint
	case "hpi":
		return r.HPI
	case "assessment":
		return r.Assessment
	case "plan":
		return r.Plan
	case "medications":
		return r.Medications
	case "allergies":
		return r.Allergies
	case "red_flags":
		return r.RedFlags
	case "follow_up":
		return r.FollowUp
	case "patient_summary_plain_language":
		return r.PatientSummaryPlainLanguage
	default:
		return nil
	}
}

// isFieldPresent reports whether a field carries content: non-blank string
// or non-empty collection.
func isFieldPresent(r *models.ClinicalRecord, field string) bool {
	switch v := fieldValue(r, field).(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case []models.Problem:
		return len(v) > 0
	case []models.Medication:
		return len(v) > 0
	case []models.Allergy:
		return len(v) > 0
	case []string:
		return len(v) > 0
	default:
		return v != nil
	}
}

// Validate computes the Flags for a record: missing required fields,
// contradiction messages, per-field confidence, and the completeness score.
// It is a pure function and never mutates the record.
func Validate(record *models.ClinicalRecord) models.Flags {
	missing := []string{}
	for _, f := range RequiredFields {
		if !isFieldPresent(record, f) {
			missing = append(missing, f)
		}
	}

	contradictions := []string{}
	for _, rule := range contradictionRules {
		if ruleMatches(rule, record) {
			contradictions = append(contradictions, rule.message)
		}
	}

	confidence := computeConfidence(record)
	score := computeCompleteness(missing, confidence)

	return models.Flags{
		MissingFields:     missing,
		Contradictions:    contradictions,
		ConfidenceByField: confidence,
		CompletenessScore: round3(score),
	}
}

// ruleMatches evaluates one contradiction rule; a panicking rule is
// non-matching rather than fatal.
func ruleMatches(rule contradictionRule, r *models.ClinicalRecord) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return rule.matches(r)
}

func computeConfidence(record *models.ClinicalRecord) map[string]string {
	confidence := make(map[string]string, len(RequiredFields))
	for _, f := range RequiredFields {
		if !isFieldPresent(record, f) {
			confidence[f] = ConfidenceLow
			continue
		}
		switch v := fieldValue(record, f).(type) {
		case string:
			words := len(strings.Fields(v))
			switch {
			case words >= 5:
				confidence[f] = ConfidenceHigh
			case words >= 2:
				confidence[f] = ConfidenceMedium
			default:
				confidence[f] = ConfidenceLow
			}
		case []models.Problem, []models.Medication, []models.Allergy, []string:
			confidence[f] = ConfidenceHigh
		default:
			confidence[f] = ConfidenceMedium
		}
	}
	return confidence
}

// computeCompleteness combines field presence (0.5), missing critical
// fields (0.3) and mean confidence (0.2), clamped to [0,1].
func computeCompleteness(missing []string, confidence map[string]string) float64 {
	totalRequired := len(RequiredFields)
	present := totalRequired - len(missing)

	missingCritical := 0
	for _, f := range CriticalFields {
		for _, m := range missing {
			if f == m {
				missingCritical++
				break
			}
		}
	}

	var confSum float64
	for _, level := range confidence {
		n, ok := confidenceNumeric[level]
		if !ok {
			n = 0.33
		}
		confSum += n
	}
	avgConfidence := 0.0
	if len(confidence) > 0 {
		avgConfidence = confSum / float64(len(confidence))
	}

	score := 0.5*(float64(present)/float64(totalRequired)) +
		0.3*(1.0-float64(missingCritical)/float64(len(CriticalFields))) +
		0.2*avgConfidence

	return math.Max(0.0, math.Min(1.0, score))
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
