package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type answer struct {
	InstructionsText     string   `json:"instructionsText"`
	MedicationsToSuspend []string `json:"medicationsToSuspend"`
}

func answerBody(t *testing.T, text string) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{"parts": []map[string]string{{"text": text}}}},
		},
	})
	require.NoError(t, err)
	return b
}

func TestGenerateJSON_Success(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write(answerBody(t, `{"instructionsText":"Suspender 7 días antes.","medicationsToSuspend":["Aspirina"]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "secret", Model: "gemini-test", BaseURL: srv.URL + "/"})
	schema := &Schema{Type: "OBJECT", Required: []string{"instructionsText"}}

	var out answer
	require.NoError(t, c.GenerateJSON(context.Background(), "prompt", schema, &out))
	assert.Equal(t, "Suspender 7 días antes.", out.InstructionsText)
	assert.Equal(t, []string{"Aspirina"}, out.MedicationsToSuspend)

	assert.Equal(t, "application/json", got.GenerationConfig.ResponseMimeType)
	require.NotNil(t, got.GenerationConfig.ResponseSchema)
	assert.Equal(t, "prompt", got.Contents[0].Parts[0].Text)
}

func TestGenerateJSON_Disabled(t *testing.T) {
	c := NewClient(Config{})
	assert.False(t, c.Enabled())
	assert.ErrorIs(t, c.GenerateJSON(context.Background(), "p", nil, &answer{}), ErrDisabled)
}

func TestGenerateJSON_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", Model: "m", BaseURL: srv.URL})
	err := c.GenerateJSON(context.Background(), "p", nil, &answer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateJSON_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", Model: "m", BaseURL: srv.URL})
	assert.Error(t, c.GenerateJSON(context.Background(), "p", nil, &answer{}))
}

func TestGenerateJSON_AnswerNotJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(answerBody(t, "lo siento, no puedo"))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", Model: "m", BaseURL: srv.URL})
	err := c.GenerateJSON(context.Background(), "p", nil, &answer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}
