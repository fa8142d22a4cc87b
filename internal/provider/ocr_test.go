package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/certhours/cert-hours-api/pkg/config"
)

func TestOCRClientRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ocr", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		require.Equal(t, "por", r.FormValue("language"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "certificado.pdf", header.Filename)

		json.NewEncoder(w).Encode(OCRResult{Text: "CERTIFICADO DE PARTICIPAÇÃO", Confidence: 0.94})
	}))
	defer srv.Close()

	client := NewOCRClient(config.OCRProviderConfig{BaseURL: srv.URL, Language: "por"})
	result, err := client.Recognize(context.Background(), "certificado.pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	require.Equal(t, "CERTIFICADO DE PARTICIPAÇÃO", result.Text)
	require.InDelta(t, 0.94, result.Confidence, 0.001)
	require.GreaterOrEqual(t, result.ProcessingTimeMs, 0)
}

func TestOCRClientRecognizeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewOCRClient(config.OCRProviderConfig{BaseURL: srv.URL})
	_, err := client.Recognize(context.Background(), "certificado.pdf", []byte("%PDF-1.4"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "http 500")
}

func TestOCRClientRecognizeEmptyTextIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(OCRResult{Text: "", Confidence: 0})
	}))
	defer srv.Close()

	client := NewOCRClient(config.OCRProviderConfig{BaseURL: srv.URL})
	result, err := client.Recognize(context.Background(), "blank.png", []byte{0x89, 0x50})
	require.NoError(t, err)
	require.Empty(t, result.Text)
}
