package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/certhours/cert-hours-api/pkg/config"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) (*LLMClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewLLMClient(config.LLMProviderConfig{
		BaseURL:    srv.URL,
		Model:      "llama3.1:8b",
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, WithLLMSleeper(func(time.Duration) {}))
	return client, srv
}

func TestLLMClientExtractFields(t *testing.T) {
	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "llama3.1:8b", req.Model)
		require.False(t, req.Stream)
		require.InDelta(t, 0.1, req.Options.Temperature, 0.001)

		json.NewEncoder(w).Encode(generateResponse{
			Response: `{"nome_participante":"Maria Silva","evento":"Semana Acadêmica","local":"Recife","data":"10/03/2024","carga_horaria":"20 horas"}`,
			Done:     true,
		})
	})

	fields, err := client.ExtractFields(context.Background(), "texto do certificado")
	require.NoError(t, err)
	require.NotNil(t, fields.ParticipantName)
	require.Equal(t, "Maria Silva", *fields.ParticipantName)
	require.Equal(t, "20 horas", *fields.Hours)
}

func TestLLMClientExtractFieldsNullsTolerated(t *testing.T) {
	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{
			Response: `{"nome_participante":"Maria Silva","evento":null,"local":null,"data":null,"carga_horaria":null}`,
			Done:     true,
		})
	})

	fields, err := client.ExtractFields(context.Background(), "texto")
	require.NoError(t, err)
	require.Nil(t, fields.EventName)
	require.Nil(t, fields.Hours)
}

func TestLLMClientExtractFieldsWrappedJSON(t *testing.T) {
	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{
			Response: "Here is the extraction:\n```json\n{\"nome_participante\":\"Maria Silva\"}\n```",
			Done:     true,
		})
	})

	fields, err := client.ExtractFields(context.Background(), "texto")
	require.NoError(t, err)
	require.Equal(t, "Maria Silva", *fields.ParticipantName)
}

func TestLLMClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{Response: `{"nome_participante":"Maria"}`, Done: true})
	})

	fields, err := client.ExtractFields(context.Background(), "texto")
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, "Maria", *fields.ParticipantName)
}

func TestLLMClientGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.ExtractFields(context.Background(), "texto")
	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load()) // 1 attempt + 2 retries
}

func TestLLMClientDoesNotRetryBadRequest(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.ExtractFields(context.Background(), "texto")
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestLLMClientCategorize(t *testing.T) {
	client, _ := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.Prompt, "Participação em Palestras")

		json.NewEncoder(w).Encode(generateResponse{
			Response: `{"categoria":"Participação em Palestras","confianca":0.92,"justificativa":"Certificado de palestra."}`,
			Done:     true,
		})
	})

	event := "Semana Acadêmica"
	result, err := client.Categorize(context.Background(), "texto completo",
		CertificateFields{EventName: &event},
		"- Participação em Palestras (1 hora por hora de evento)")
	require.NoError(t, err)
	require.Equal(t, "Participação em Palestras", result.Category)
	require.NotNil(t, result.Confidence)
	require.InDelta(t, 0.92, *result.Confidence, 0.001)
}

func TestDecodeModelJSONRejectsGarbage(t *testing.T) {
	var out CertificateFields
	require.Error(t, decodeModelJSON("no json here", &out))
	require.Error(t, decodeModelJSON("", &out))
}
