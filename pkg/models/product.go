package models

// ProcessingLevel is the coarse processing classification derived from the NOVA group.
type ProcessingLevel string

const (
	ProcessingUnprocessed        ProcessingLevel = "UNPROCESSED"
	ProcessingMinimallyProcessed ProcessingLevel = "MINIMALLY_PROCESSED"
	ProcessingProcessed          ProcessingLevel = "PROCESSED"
	ProcessingUltraProcessed     ProcessingLevel = "ULTRA_PROCESSED"
)

// DefaultNovaGroup is assumed when the source gives no usable processing group.
const DefaultNovaGroup = 4

// ProcessingLevelForNova maps NOVA groups 1-4 onto a ProcessingLevel.
func ProcessingLevelForNova(group int) ProcessingLevel {
	switch group {
	case 1:
		return ProcessingUnprocessed
	case 2:
		return ProcessingMinimallyProcessed
	case 3:
		return ProcessingProcessed
	default:
		return ProcessingUltraProcessed
	}
}

// Additive is a food additive resolved from a product database tag.
type Additive struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProductMetadata holds the descriptive, non-numeric part of a product.
type ProductMetadata struct {
	Barcode                 string     `json:"barcode,omitempty"`
	Name                    string     `json:"name"`
	Brand                   string     `json:"brand,omitempty"`
	ImageURL                string     `json:"image_url,omitempty"`
	Categories              []string   `json:"categories,omitempty"`
	CategoriesHierarchy     []string   `json:"categories_hierarchy,omitempty"`
	NovaGroup               int        `json:"nova_group"`
	OfficialGrade           string     `json:"official_grade,omitempty"`
	Additives               []Additive `json:"additives,omitempty"`
	AllergenTags            []string   `json:"allergen_tags,omitempty"`
	TraceTags               []string   `json:"trace_tags,omitempty"`
	IsVegan                 bool       `json:"is_vegan"`
	ContainsPalmOil         bool       `json:"contains_palm_oil"`
	IngredientsText         string     `json:"ingredients_text,omitempty"`
	IngredientsAnalysisTags []string   `json:"ingredients_analysis_tags,omitempty"`
	ServingSize             string     `json:"serving_size,omitempty"`
}

// NewProductMetadata returns placeholder metadata used before any source has been read.
func NewProductMetadata(barcode string) ProductMetadata {
	return ProductMetadata{
		Barcode:   barcode,
		Name:      "Unknown product",
		NovaGroup: DefaultNovaGroup,
		IsVegan:   true,
	}
}

// AdditiveCodes returns the display codes of all additives, e.g. ["E322", "E330"].
func (m ProductMetadata) AdditiveCodes() []string {
	codes := make([]string, 0, len(m.Additives))
	for _, a := range m.Additives {
		codes = append(codes, a.Code)
	}
	return codes
}

// AdditiveDescriptions returns the human readable additive descriptions.
func (m ProductMetadata) AdditiveDescriptions() []string {
	out := make([]string, 0, len(m.Additives))
	for _, a := range m.Additives {
		out = append(out, a.Description)
	}
	return out
}

// ProcessingLevel returns the level implied by the NOVA group.
func (m ProductMetadata) ProcessingLevel() ProcessingLevel {
	return ProcessingLevelForNova(m.NovaGroup)
}

// ProcessingMarkers lists short notes explaining the processing level.
func (m ProductMetadata) ProcessingMarkers() []string {
	var markers []string
	if len(m.Additives) > 0 {
		markers = append(markers, "Contains additives")
	}
	switch m.NovaGroup {
	case 3:
		markers = append(markers, "Processed food")
	case 4:
		markers = append(markers, "Ultra-processed food")
	}
	return markers
}

// LookupStatus tags the outcome of a product database lookup.
type LookupStatus string

const (
	LookupSuccess        LookupStatus = "success"
	LookupNotFound       LookupStatus = "not_found"
	LookupTransportError LookupStatus = "transport_error"
	LookupParseError     LookupStatus = "parse_error"
)

// LookupResult is the total result of a product lookup. Only a Success result
// carries a record and metadata.
type LookupResult struct {
	Status   LookupStatus    `json:"status"`
	Record   NutrientRecord  `json:"nutrients"`
	Metadata ProductMetadata `json:"product"`
	Err      error           `json:"-"`
}

// Found reports whether the lookup produced data.
func (r LookupResult) Found() bool {
	return r.Status == LookupSuccess
}

// LookupFailed builds a non-success result.
func LookupFailed(status LookupStatus, err error) LookupResult {
	return LookupResult{Status: status, Err: err}
}
