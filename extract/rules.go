package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cinco36/iv-ingestion/id"
)

// addressPattern matches "Address: <line1>, <city>, <ST> <zip>". Rules
// are ordered most- to least-specific and the first match wins, per
// the pattern-rule precedence described for field-extraction.
var addressPattern = regexp.MustCompile(`(?i)address:\s*([^,\n]+),\s*([^,\n]+),\s*([A-Z]{2})\s+(\d{5})`)

var inspectorPattern = regexp.MustCompile(`(?i)inspector:\s*([^,\n]+),\s*license\s+([A-Za-z0-9-]+)`)

var companyPattern = regexp.MustCompile(`(?i)company:\s*([^,\n]+)`)
var contactPattern = regexp.MustCompile(`(?i)contact:\s*([^,\n]+)`)
var inspectionDatePattern = regexp.MustCompile(`(?i)(?:inspection )?date:\s*([^,\n]+)`)

var locationPattern = regexp.MustCompile(`(?i)\bat ([a-z][a-z0-9 '/-]*)`)
var costPattern = regexp.MustCompile(`\$\s?([\d,]+(?:\.\d+)?)`)

// extractProperty derives a normalized Property from raw document
// text. Fields that cannot be confidently matched are left zero-valued
// rather than guessed.
func extractProperty(text string) Property {
	var p Property
	if m := addressPattern.FindStringSubmatch(text); m != nil {
		p.AddressLine1 = strings.TrimSpace(m[1])
		p.City = strings.TrimSpace(m[2])
		p.State = strings.TrimSpace(m[3])
		p.Zip = strings.TrimSpace(m[4])
	}
	return p
}

// extractInspector derives a normalized Inspector from raw document
// text.
func extractInspector(text string) Inspector {
	var insp Inspector
	if m := inspectorPattern.FindStringSubmatch(text); m != nil {
		insp.Name = strings.TrimSpace(m[1])
		insp.License = strings.TrimSpace(m[2])
	}
	if m := companyPattern.FindStringSubmatch(text); m != nil {
		insp.Company = strings.TrimSpace(m[1])
	}
	if m := contactPattern.FindStringSubmatch(text); m != nil {
		insp.Contact = strings.TrimSpace(m[1])
	}
	if m := inspectionDatePattern.FindStringSubmatch(text); m != nil {
		insp.Date = strings.TrimSpace(m[1])
	}
	return insp
}

// splitSentences breaks raw text into candidate finding sentences on
// line breaks and terminal punctuation, discarding the structured
// address/inspector lines already consumed above.
func splitSentences(text string) []string {
	replacer := strings.NewReplacer(".", "\n", ";", "\n")
	var out []string
	for _, line := range strings.Split(replacer.Replace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "address:") || strings.HasPrefix(lower, "inspector:") ||
			strings.HasPrefix(lower, "company:") || strings.HasPrefix(lower, "contact:") ||
			strings.HasPrefix(lower, "date:") || strings.HasPrefix(lower, "inspection date:") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// extractFindings derives findings from raw document text: every
// candidate sentence that hits a severity keyword becomes a Finding,
// classified by ClassifySeverity/ClassifyCategory. A sentence with no
// severity keyword match is not a finding (informational-only prose
// is not treated as an observation) — this keeps the empty-findings
// case legal, matching the field-extract success semantics.
func extractFindings(text string) []Finding {
	var findings []Finding
	for _, sentence := range splitSentences(text) {
		if !hasSeverityKeyword(sentence) {
			continue
		}
		f := Finding{
			ID:          id.NewFindingID(),
			Category:    ClassifyCategory(sentence),
			Severity:    ClassifySeverity(sentence),
			Description: sentence,
		}
		if m := locationPattern.FindStringSubmatch(sentence); m != nil {
			f.Location = strings.TrimSpace(m[1])
		}
		if m := costPattern.FindStringSubmatch(sentence); m != nil {
			if cost, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
				f.EstimatedCost = cost
			}
		}
		findings = append(findings, f)
	}
	return findings
}

func hasSeverityKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, tier := range severityKeywords {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}
