// Package extract implements the local rule-based extractor: regex section
// splitting and pattern extraction over free-text clinical notes. Its repair
// interface matches the remote model extractors exactly, so model-backed
// implementations can be swapped in without changing callers.
package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/edgemed/edgemed/internal/models"
)

// Name and Version identify this extractor in model info reported to callers.
const (
	Name    = "rules"
	Version = "rule-based-v1"
)

// RuleBased extracts structured records from note text using section header
// detection and regex patterns. It holds no state and is safe for
// concurrent use.
type RuleBased struct{}

func New() *RuleBased {
	return &RuleBased{}
}

type sectionPattern struct {
	re   *regexp.Regexp
	name string
}

var sectionPatterns = []sectionPattern{
	{regexp.MustCompile(`(?i)(?:CC|Chief\s*Complaint)\s*[:.]\s*`), "cc"},
	{regexp.MustCompile(`(?i)(?:HPI|History\s*of\s*Present\s*Illness)\s*[:.]\s*`), "hpi"},
	{regexp.MustCompile(`(?i)(?:History)\s*[:.]\s*`), "history"},
	{regexp.MustCompile(`(?i)(?:Assessment|Dx|Diagnosis|Diagnoses)\s*[:.]\s*`), "assessment"},
	{regexp.MustCompile(`(?i)(?:Plan|Treatment\s*Plan)\s*[:.]\s*`), "plan"},
	{regexp.MustCompile(`(?i)(?:Follow[\s-]*Up)\s*[:.]\s*`), "follow_up"},
	{regexp.MustCompile(`(?i)(?:Allergies|Allergy)\s*[:.]\s*`), "allergies_section"},
	{regexp.MustCompile(`(?i)(?:Medications|Meds|Current\s*Medications)\s*[:.]\s*`), "medications_section"},
}

var (
	medPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b([A-Z][a-z]+(?:/[A-Z][a-z]+)?)\s+(\d+(?:\.\d+)?\s*(?:mg|mcg|g|ml|units?))\s*(?:,?\s*((?:once|twice|three\s+times|QD|BID|TID|QID|daily|weekly|PRN|as\s+needed|q\d+h)[^,\n]*))?`),
		regexp.MustCompile(`(?i)-\s*\b([A-Z][a-z]+(?:/[A-Z][a-z]+)?)\s+(\d+(?:\.\d+)?\s*(?:mg|mcg|g|ml|units?))\s*(.*?)(?:\n|$)`),
	}
	medStopWords = map[string]struct{}{"the": {}, "and": {}, "with": {}, "for": {}}

	nkdaRe = regexp.MustCompile(`(?i)\bNKDA\b|no\s+known\s+(?:drug\s+)?allergies`)

	allergyToRe   = regexp.MustCompile(`(?i)allerg(?:ic|y|ies)\s*(?:to|:)[ \t]*([^\n.;]+)`)
	allergyListRe = regexp.MustCompile(`(?i)-\s*([A-Za-z]+)\s*\((?:causes?|reaction:?)\s*([^)]+)\)`)
	substanceSep  = regexp.MustCompile(`[,;]|\band\b`)

	problemSplitRe = regexp.MustCompile(`[\n;]|\d+\.\s*`)
	resolvedRe     = regexp.MustCompile(`(?i)\b(resolved|stable)\b`)
	chronicRe      = regexp.MustCompile(`(?i)\b(chronic|ongoing)\b`)
)

type redFlagPattern struct {
	re    *regexp.Regexp
	label string
}

var redFlagPatterns = []redFlagPattern{
	{regexp.MustCompile(`(?i)\bchest\s+pain\b`), "Chest pain"},
	{regexp.MustCompile(`(?i)\bshortness\s+of\s+breath\b|\bSOB\b|\bdyspnea\b`), "Shortness of breath"},
	{regexp.MustCompile(`(?i)\bfever\b.*?\b10[1-9]`), "High fever"},
	{regexp.MustCompile(`(?i)\bsuicidal\b|\bself[\s-]harm\b`), "Suicidal ideation/self-harm"},
	{regexp.MustCompile(`(?i)\bsevere\s+pain\b|\bpain\s*(?:scale|rating|level)?\s*(?::|is)?\s*(?:[89]|10)\b`), "Severe pain"},
	{regexp.MustCompile(`(?i)\bunresponsive\b|\bunconsci`), "Unresponsive/unconscious"},
}

// Extract builds a structured record from free-text note content.
func (e *RuleBased) Extract(noteText, locale string) *models.ClinicalRecord {
	sections := splitSections(noteText)
	medications := extractMedications(noteText)
	allergies := extractAllergies(noteText)
	problems := extractProblems(sections["assessment"])
	redFlags := extractRedFlags(noteText)

	cc := firstOf(sections, "cc", "chief_complaint")

	return &models.ClinicalRecord{
		ChiefComplaint:              cc,
		HPI:                         firstOf(sections, "hpi", "history"),
		Assessment:                  problems,
		Plan:                        sections["plan"],
		Medications:                 medications,
		Allergies:                   allergies,
		RedFlags:                    redFlags,
		FollowUp:                    sections["follow_up"],
		PatientSummaryPlainLanguage: generateSummary(cc, medications, allergies, problems),
	}
}

// RepairFields re-extracts only the requested fields and returns them as a
// partial update map. The contradictions pseudo-field is skipped: rules
// cannot resolve contradictions, only a fresh narrative can.
func (e *RuleBased) RepairFields(_ context.Context, noteText string, _ *models.ClinicalRecord, fieldsToRepair []string, locale string) (map[string]any, error) {
	full := e.Extract(noteText, locale)

	result := make(map[string]any)
	for _, field := range fieldsToRepair {
		switch field {
		case "chief_complaint":
			if full.ChiefComplaint != "" {
				result[field] = full.ChiefComplaint
			}
		case "hpi":
			if full.HPI != "" {
				result[field] = full.HPI
			}
		case "assessment":
			if len(full.Assessment) > 0 {
				result[field] = full.Assessment
			}
		case "plan":
			if full.Plan != "" {
				result[field] = full.Plan
			}
		case "medications":
			if len(full.Medications) > 0 {
				result[field] = full.Medications
			}
		case "allergies":
			if len(full.Allergies) > 0 {
				result[field] = full.Allergies
			}
		case "red_flags":
			if len(full.RedFlags) > 0 {
				result[field] = full.RedFlags
			}
		case "follow_up":
			if full.FollowUp != "" {
				result[field] = full.FollowUp
			}
		}
	}
	return result, nil
}

// splitSections locates known clinical headers and slices the text between
// them. Text without any recognizable header lands wholesale in hpi.
func splitSections(text string) map[string]string {
	type boundary struct {
		end  int
		name string
	}

	var boundaries []boundary
	for _, sp := range sectionPatterns {
		for _, loc := range sp.re.FindAllStringIndex(text, -1) {
			boundaries = append(boundaries, boundary{end: loc[1], name: sp.name})
		}
	}

	if len(boundaries) == 0 {
		return map[string]string{"hpi": strings.TrimSpace(text)}
	}

	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].end < boundaries[j].end })

	sections := make(map[string]string)
	for i, b := range boundaries {
		end := len(text)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].end
		}
		content := strings.TrimSpace(text[b.end:end])
		for _, sp := range sectionPatterns {
			content = strings.TrimSpace(sp.re.ReplaceAllString(content, ""))
		}
		if content != "" {
			sections[b.name] = content
		}
	}
	return sections
}

func extractMedications(text string) []models.Medication {
	var meds []models.Medication
	seen := make(map[string]struct{})
	for _, re := range medPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(m[1])
			lower := strings.ToLower(name)
			if _, dup := seen[lower]; dup {
				continue
			}
			if _, stop := medStopWords[lower]; stop {
				continue
			}
			seen[lower] = struct{}{}

			med := models.Medication{Name: name, Dose: strings.TrimSpace(m[2])}
			if len(m) > 3 {
				med.Frequency = strings.TrimSpace(m[3])
			}
			meds = append(meds, med)
		}
	}
	return meds
}

func extractAllergies(text string) []models.Allergy {
	if nkdaRe.MatchString(text) {
		return []models.Allergy{{Substance: "NKDA"}}
	}

	var allergies []models.Allergy
	seen := make(map[string]struct{})

	add := func(substanceList, reaction string) {
		for _, s := range substanceSep.Split(substanceList, -1) {
			s = strings.TrimRight(strings.TrimSpace(s), ".")
			if len(s) <= 1 {
				continue
			}
			lower := strings.ToLower(s)
			if _, dup := seen[lower]; dup {
				continue
			}
			seen[lower] = struct{}{}
			allergies = append(allergies, models.Allergy{Substance: s, Reaction: reaction})
		}
	}

	for _, m := range allergyToRe.FindAllStringSubmatch(text, -1) {
		add(m[1], "")
	}
	for _, m := range allergyListRe.FindAllStringSubmatch(text, -1) {
		add(m[1], strings.TrimSpace(m[2]))
	}
	return allergies
}

func extractProblems(assessmentText string) []models.Problem {
	if assessmentText == "" {
		return nil
	}
	var problems []models.Problem
	for _, line := range problemSplitRe.Split(assessmentText, -1) {
		line = strings.TrimRight(strings.TrimSpace(line), ".")
		if len(line) <= 2 {
			continue
		}
		status := "active"
		switch {
		case resolvedRe.MatchString(line):
			status = "resolved"
		case chronicRe.MatchString(line):
			status = "chronic"
		}
		problems = append(problems, models.Problem{Description: line, Status: status})
	}
	return problems
}

func extractRedFlags(text string) []string {
	var flags []string
	for _, rf := range redFlagPatterns {
		if rf.re.MatchString(text) {
			flags = append(flags, rf.label)
		}
	}
	return flags
}

func generateSummary(cc string, meds []models.Medication, allergies []models.Allergy, problems []models.Problem) string {
	var parts []string
	if cc != "" {
		parts = append(parts, fmt.Sprintf("Patient presents with: %s.", cc))
	}
	if len(problems) > 0 {
		descs := make([]string, 0, 3)
		for _, p := range problems[:min(3, len(problems))] {
			descs = append(descs, p.Description)
		}
		parts = append(parts, fmt.Sprintf("Assessment includes: %s.", strings.Join(descs, ", ")))
	}
	if len(meds) > 0 {
		names := make([]string, 0, 5)
		for _, m := range meds[:min(5, len(meds))] {
			names = append(names, m.Name)
		}
		parts = append(parts, fmt.Sprintf("Current medications: %s.", strings.Join(names, ", ")))
	}
	if len(allergies) > 0 {
		substances := make([]string, 0, len(allergies))
		for _, a := range allergies {
			substances = append(substances, a.Substance)
		}
		parts = append(parts, fmt.Sprintf("Allergies: %s.", strings.Join(substances, ", ")))
	}
	if len(parts) == 0 {
		return "No summary available."
	}
	return strings.Join(parts, " ")
}

func firstOf(sections map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := sections[k]; v != "" {
			return v
		}
	}
	return ""
}
