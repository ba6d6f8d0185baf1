package validate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/edgemed/edgemed/internal/logging"
	"github.com/edgemed/edgemed/internal/models"
)

// Extractor is the pluggable capability used to repair weak fields of a
// record from the raw note text. Implementations must return an empty map
// rather than fail on internal errors; errors are tolerated here regardless.
type Extractor interface {
	RepairFields(ctx context.Context, noteText string, current *models.ClinicalRecord, fieldsToRepair []string, locale string) (map[string]any, error)
}

// contradictionsField is the pseudo-field appended to the repair target set
// when contradictions were detected.
const contradictionsField = "contradictions"

// recordFields is the set of keys the repair merge will accept.
var recordFields = map[string]struct{}{
	"chief_complaint":                {},
	"hpi":                            {},
	"assessment":                     {},
	"plan":                           {},
	"medications":                    {},
	"allergies":                      {},
	"red_flags":                      {},
	"follow_up":                      {},
	"patient_summary_plain_language": {},
}

// ValidateAndRepair validates the record and, while it scores below
// CompletenessThreshold or carries contradictions, asks the extractor to
// repair the weak fields. At most maxRepairs repair rounds run (pass a
// negative value for the MaxRepairAttempts default); with a nil extractor
// only a single validation pass happens. A record that still scores low
// after the cap is returned as-is with its final flags.
func ValidateAndRepair(ctx context.Context, log logging.Logger, record *models.ClinicalRecord, noteText string, extractor Extractor, locale string, maxRepairs int) (*models.ClinicalRecord, models.Flags) {
	if maxRepairs < 0 {
		maxRepairs = MaxRepairAttempts
	}

	var flags models.Flags
	for attempt := 0; attempt <= maxRepairs; attempt++ {
		flags = Validate(record)

		if flags.CompletenessScore >= CompletenessThreshold && len(flags.Contradictions) == 0 {
			break
		}

		if attempt >= maxRepairs || extractor == nil {
			break
		}

		fieldsToFix := flags.MissingFields
		if len(flags.Contradictions) > 0 {
			fieldsToFix = append(append([]string{}, fieldsToFix...), contradictionsField)
		}
		if len(fieldsToFix) == 0 {
			break
		}

		log.Info(ctx, "repair attempt",
			"attempt", attempt+1, "max", maxRepairs, "fields", fieldsToFix)

		record = applyRepair(ctx, log, record, noteText, fieldsToFix, extractor, locale)
	}

	return record, flags
}

// applyRepair calls the extractor and merges the returned partial update
// into the record. Nil values and the literal string "unknown" carry no new
// information and are discarded. An extractor failure leaves the record
// unrepaired.
func applyRepair(ctx context.Context, log logging.Logger, record *models.ClinicalRecord, noteText string, fieldsToFix []string, extractor Extractor, locale string) *models.ClinicalRecord {
	repaired, err := extractor.RepairFields(ctx, noteText, record, fieldsToFix, locale)
	if err != nil {
		log.Error(ctx, "repair call failed", "error", err)
		return record
	}

	data := recordToMap(record)
	if data == nil {
		return record
	}

	for field, value := range repaired {
		if _, known := recordFields[field]; !known {
			continue
		}
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && strings.EqualFold(strings.TrimSpace(s), "unknown") {
			continue
		}
		data[field] = value
	}

	merged, err := mapToRecord(data)
	if err != nil {
		log.Error(ctx, "repair merge failed", "error", err)
		return record
	}
	return merged
}

func recordToMap(record *models.ClinicalRecord) map[string]any {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}

func mapToRecord(data map[string]any) (*models.ClinicalRecord, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var record models.ClinicalRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
