package extract

import "strings"

// severityKeywords is ordered most- to least-severe; the first keyword
// that appears in the input text wins. Ordering matters more than
// table shape here, so this stays a slice, not a map.
var severityKeywords = []struct {
	keywords []string
	severity Severity
}{
	{[]string{"critical", "urgent", "hazard", "danger", "emergency", "immediate"}, SeverityCritical},
	{[]string{"moderate", "concern", "issue", "problem", "attention"}, SeverityMajor},
	{[]string{"minor", "cosmetic", "maintenance", "suggestion"}, SeverityMinor},
}

// ClassifySeverity returns the severity of a finding description by
// first-hit keyword match. Text with no matching keyword is
// informational.
func ClassifySeverity(text string) Severity {
	lower := strings.ToLower(text)
	for _, tier := range severityKeywords {
		for _, kw := range tier.keywords {
			if strings.Contains(lower, kw) {
				return tier.severity
			}
		}
	}
	return SeverityInformational
}

var categoryKeywords = []struct {
	keywords []string
	category Category
}{
	{[]string{"electrical", "wiring", "outlet", "breaker", "panel", "circuit"}, CategoryElectrical},
	{[]string{"plumbing", "pipe", "leak", "faucet", "drain", "water heater"}, CategoryPlumbing},
	{[]string{"structural", "foundation", "beam", "joist", "crack", "settling"}, CategoryStructural},
	{[]string{"hvac", "furnace", "air condition", "ductwork", "thermostat"}, CategoryHVAC},
	{[]string{"roof", "shingle", "gutter", "flashing"}, CategoryRoofing},
	{[]string{"interior", "flooring", "ceiling", "wall", "drywall"}, CategoryInterior},
	{[]string{"exterior", "siding", "deck", "driveway", "fence"}, CategoryExterior},
	{[]string{"safety", "smoke detector", "carbon monoxide", "handrail", "fall"}, CategorySafety},
}

// ClassifyCategory returns the category of a finding description by
// first-hit keyword match, ordered most- to least-specific. Text with
// no matching keyword is "other".
func ClassifyCategory(text string) Category {
	lower := strings.ToLower(text)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.category
			}
		}
	}
	return CategoryOther
}
