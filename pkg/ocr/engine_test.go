package ocr

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
)

func TestNextProfile(t *testing.T) {
	tests := []struct {
		current int
		want    int
	}{
		{0, 1},
		{1, 2},
		{2, 3},
		{3, 0},
		{7, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextProfile(tt.current), "current=%d", tt.current)
	}
}

func TestProfileAt(t *testing.T) {
	p, err := ProfileAt(2)
	require.NoError(t, err)
	assert.Equal(t, 11, p.PageSegMode)
	assert.Equal(t, "0123456789.,g% ", p.Whitelist)
	assert.True(t, p.Sparse())

	_, err = ProfileAt(4)
	assert.ErrorIs(t, err, apperrors.ErrInvalidProfileIndex)
	_, err = ProfileAt(-1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidProfileIndex)
}

func TestProfiles_IndexMatchesPosition(t *testing.T) {
	require.Len(t, Profiles, 4)
	for i, p := range Profiles {
		assert.Equal(t, i, p.Index)
	}
}

func TestTesseractEngine_Recognize(t *testing.T) {
	var gotOptions tesseractOptions
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tesseract", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("options")), &gotOptions))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "label.png", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"exit":{"code":0},"stdout":"Energy 250 kcal\nSugars 12 g","stderr":""}}`))
	}))
	defer server.Close()

	engine := NewTesseractEngine(server.URL+"/", time.Second, zap.NewNop())
	text, err := engine.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), Profiles[1])

	require.NoError(t, err)
	assert.Equal(t, "Energy 250 kcal\nSugars 12 g", text)
	assert.Equal(t, 6, gotOptions.PageSegmentationMethod)
	assert.Equal(t, 3, gotOptions.OCREngineMode)
	assert.Equal(t, alphanumericWhitelist, gotOptions.TessConfig["tessedit_char_whitelist"])
}

func TestTesseractEngine_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	engine := NewTesseractEngine(server.URL, time.Second, zap.NewNop())
	_, err := engine.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)), Profiles[0])

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestTesseractEngine_NonZeroExit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"exit":{"code":1},"stdout":"","stderr":"bad image"}}`))
	}))
	defer server.Close()

	engine := NewTesseractEngine(server.URL, time.Second, zap.NewNop())
	_, err := engine.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)), Profiles[0])

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad image")
}

func TestNoopEngine(t *testing.T) {
	text, err := NoopEngine{}.Recognize(context.Background(), nil, Profiles[0])
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Equal(t, "none", NoopEngine{}.Name())
}
