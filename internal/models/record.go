// Package models defines the shared data model for edgemed: the structured
// clinical record, derived validation flags, queue items, and the sync wire
// schema exchanged between the agent and the server.
package models

// Mode governs whether raw free text may ever leave the device.
type Mode string

const (
	ModeDemo Mode = "demo"
	ModeProd Mode = "prod"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == ModeDemo || m == ModeProd
}

// Medication is one entry of the current-medications list.
type Medication struct {
	Name      string `json:"name"`
	Dose      string `json:"dose,omitempty"`
	Frequency string `json:"frequency,omitempty"`
	Route     string `json:"route,omitempty"`
	// Status is e.g. new, increased, continue.
	Status string `json:"status,omitempty"`
}

// Allergy is one entry of the allergy list.
type Allergy struct {
	Substance string `json:"substance"`
	Reaction  string `json:"reaction,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

// Problem is one assessment entry.
type Problem struct {
	Description string `json:"description"`
	// Status is active, resolved or chronic.
	Status string `json:"status,omitempty"`
	ICD10  string `json:"icd10,omitempty"`
	// Confidence is low, medium or high.
	Confidence string `json:"confidence,omitempty"`
}

// ClinicalRecord is the structured clinical content being synchronized.
// A zero value means the field was not documented.
type ClinicalRecord struct {
	ChiefComplaint string       `json:"chief_complaint,omitempty"`
	HPI            string       `json:"hpi,omitempty"`
	Assessment     []Problem    `json:"assessment"`
	Plan           string       `json:"plan,omitempty"`
	Medications    []Medication `json:"medications"`
	Allergies      []Allergy    `json:"allergies"`
	RedFlags       []string     `json:"red_flags"`
	FollowUp       string       `json:"follow_up,omitempty"`

	PatientSummaryPlainLanguage string `json:"patient_summary_plain_language,omitempty"`
}

// Flags is derived from a record by validation, never mutated in place.
type Flags struct {
	MissingFields     []string          `json:"missing_fields"`
	Contradictions    []string          `json:"contradictions"`
	ConfidenceByField map[string]string `json:"confidence_by_field"`
	CompletenessScore float64           `json:"completeness_score"`
}

// ModelInfo describes the extraction model that produced a record.
type ModelInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// Runtime is cloud or local.
	Runtime string `json:"runtime"`
}
