// Package ocr defines the text recognition port used by the label extractor and its adapters.
package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
)

// Engine recognizes text in a pre-processed label image using a recognition profile.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, profile Profile) (string, error)
	Name() string
}

// Profile configures a recognition pass.
type Profile struct {
	Index int
	// EngineMode follows Tesseract's --oem values (1 = LSTM only, 3 = default).
	EngineMode int
	// PageSegMode follows Tesseract's --psm values.
	PageSegMode int
	// Whitelist restricts the recognized charset. Empty means unrestricted.
	Whitelist string
	Language  string
	DPI       int
}

// Sparse reports whether the profile looks for scattered text rather than a block layout.
func (p Profile) Sparse() bool {
	return p.PageSegMode == 11 || p.PageSegMode == 12
}

const alphanumericWhitelist = "0123456789.,ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz() "

// Profiles are tried in this order.
var Profiles = []Profile{
	{Index: 0, EngineMode: 1, PageSegMode: 4, Language: "eng", DPI: 300},
	{Index: 1, EngineMode: 3, PageSegMode: 6, Whitelist: alphanumericWhitelist},
	{Index: 2, EngineMode: 3, PageSegMode: 11, Whitelist: "0123456789.,g% "},
	{Index: 3, EngineMode: 1, PageSegMode: 3},
}

// ProfileAt returns the profile at index or apperrors.ErrInvalidProfileIndex.
func ProfileAt(index int) (Profile, error) {
	if index < 0 || index >= len(Profiles) {
		return Profile{}, fmt.Errorf("%w: %d", apperrors.ErrInvalidProfileIndex, index)
	}
	return Profiles[index], nil
}

// NextProfile returns the profile index a client should retry with after current.
func NextProfile(current int) int {
	n := len(Profiles)
	return ((current+1)%n + n) % n
}

// NoopEngine recognizes nothing. It is used when OCR is disabled.
type NoopEngine struct{}

var _ Engine = NoopEngine{}

func (NoopEngine) Recognize(context.Context, image.Image, Profile) (string, error) {
	return "", nil
}

func (NoopEngine) Name() string { return "none" }
