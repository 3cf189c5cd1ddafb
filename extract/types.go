// Package extract implements the four-stage document extraction
// pipeline (identify, parse, field-extract, persist) that turns a raw
// uploaded inspection document into a canonical Record.
package extract

import (
	"github.com/cinco36/iv-ingestion/id"
)

// Severity classifies how urgently a Finding needs attention. The set
// is closed and ordered most- to least-severe.
type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityMajor         Severity = "major"
	SeverityMinor         Severity = "minor"
	SeverityInformational Severity = "informational"
)

// Category classifies the inspected system or area a Finding concerns.
// The set is closed.
type Category string

const (
	CategoryElectrical Category = "electrical"
	CategoryPlumbing   Category = "plumbing"
	CategoryStructural Category = "structural"
	CategoryHVAC       Category = "hvac"
	CategoryRoofing    Category = "roofing"
	CategoryInterior   Category = "interior"
	CategoryExterior   Category = "exterior"
	CategorySafety     Category = "safety"
	CategoryOther      Category = "other"
)

// Property is the normalized property record extracted from a
// document.
type Property struct {
	AddressLine1 string `json:"address_line1,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Zip          string `json:"zip,omitempty"`
	Type         string `json:"type,omitempty"`
	SizeSqFt     int    `json:"size_sq_ft,omitempty"`
	YearBuilt    int    `json:"year_built,omitempty"`
	Beds         int    `json:"beds,omitempty"`
	Baths        float64 `json:"baths,omitempty"`
}

// Inspector is the normalized inspector record extracted from a
// document.
type Inspector struct {
	Name    string `json:"name,omitempty"`
	License string `json:"license,omitempty"`
	Company string `json:"company,omitempty"`
	Contact string `json:"contact,omitempty"`
	Date    string `json:"date,omitempty"`
}

// Finding is one observation recorded in the inspection document.
type Finding struct {
	ID             id.ID    `json:"id"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Description    string   `json:"description"`
	Location       string   `json:"location,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	EstimatedCost  float64  `json:"estimated_cost,omitempty"`
}

// Record is the canonical extraction output persisted by stage 4. It
// is never partially written: either every field below reflects one
// completed field-extract pass, or the record does not exist at all.
type Record struct {
	JobID     id.JobID  `json:"job_id"`
	Property  Property  `json:"property"`
	Inspector Inspector `json:"inspector"`
	Findings  []Finding `json:"findings"`
}

// Summarize reduces a Record to the counts/totals a job-status query
// reports, mirroring job.Result.
func (r *Record) Summarize() (count int, bySeverity map[string]int, estimatedCostTotal float64) {
	bySeverity = make(map[string]int, 4)
	for _, f := range r.Findings {
		bySeverity[string(f.Severity)]++
		estimatedCostTotal += f.EstimatedCost
	}
	return len(r.Findings), bySeverity, estimatedCostTotal
}
