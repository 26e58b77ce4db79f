package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidBarcode       = errors.New("invalid barcode")
	ErrNegativeNutrient     = errors.New("nutrient value must not be negative")
	ErrInvalidNutrientValue = errors.New("nutrient value is not a number")
	ErrUnknownNutrient      = errors.New("unknown nutrient")
	ErrEmptyNutrients       = errors.New("at least one nutrient value is required")
	ErrReferenceDataMissing = errors.New("reference data not loaded")
	ErrNoProfile            = errors.New("no health profile")
	ErrInvalidProfile       = errors.New("invalid health profile")
	ErrInvalidProfileIndex  = errors.New("invalid recognition profile index")
	ErrImageTooLarge        = errors.New("image dimensions exceed the allowed pixel count")
)
