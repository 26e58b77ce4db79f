package models

import (
	"time"

	"github.com/google/uuid"
)

// Analysis sources
const (
	SourceBarcode = "barcode"
	SourceLabel   = "label"
	SourceManual  = "manual"
)

// ProductAnalysis is the complete result for one analyzed product.
type ProductAnalysis struct {
	ID                uuid.UUID       `json:"id"`
	Source            string          `json:"source"`
	LookupStatus      LookupStatus    `json:"lookup_status,omitempty"`
	OCRProfile        *int            `json:"ocr_profile,omitempty"`
	Nutrients         NutrientRecord  `json:"nutrients"`
	Product           ProductMetadata `json:"product"`
	ProcessingLevel   ProcessingLevel `json:"processing_level"`
	ProcessingMarkers []string        `json:"processing_markers"`
	Grade             GradeBreakdown  `json:"grade"`
	Nova              NovaInfo        `json:"nova"`
	Risk              RiskReport      `json:"risk"`
	Review            SafetyReview    `json:"review"`
	Allergens         []AllergenMatch `json:"allergens"`
	Alternatives      []Alternative   `json:"alternatives"`
	CreatedAt         time.Time       `json:"created_at"`
}
