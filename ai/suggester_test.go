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

// modelServer fakes the OpenRouter completions endpoint, answering every
// request with the given assistant text.
func modelServer(t *testing.T, answer string, capture *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		content, _ := json.Marshal(answer)
		resp := map[string]any{
			"id":    "gen-1",
			"model": "test/model",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": json.RawMessage(content)}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestSuggestStructuredAnswer(t *testing.T) {
	answer := `[
	  {"type":"highlight","selectedText":"the key claim","content":"needs a citation"},
	  {"type":"NOTE","selectedText":"","content":"summary could go here"}
	]`
	var captured map[string]any
	srv := modelServer(t, answer, &captured)
	defer srv.Close()

	s := NewSuggester(Config{APIKey: "k", BaseURL: srv.URL, Model: "test/model"}, nil)
	got, err := s.Suggest(context.Background(), "the key claim is unsupported")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "highlight", got[0].Type)
	assert.Equal(t, "the key claim", got[0].SelectedText)
	assert.Equal(t, "needs a citation", got[0].Content)
	assert.Equal(t, "note", got[1].Type, "unknown or cased types collapse to note")

	assert.Equal(t, "test/model", captured["model"])
	msgs := captured["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["role"])
}

func TestSuggestFencedJSON(t *testing.T) {
	answer := "Here you go:\n```json\n[{\"type\":\"strikeout\",\"selectedText\":\"x\",\"content\":\"remove\"}]\n```"
	srv := modelServer(t, answer, nil)
	defer srv.Close()

	s := NewSuggester(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	got, err := s.Suggest(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "strikeout", got[0].Type)
}

func TestSuggestMarkdownFallback(t *testing.T) {
	answer := "## Review\n\nThis paragraph is **too long**.\n\n- split it\n- cite sources"
	srv := modelServer(t, answer, nil)
	defer srv.Close()

	s := NewSuggester(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	got, err := s.Suggest(context.Background(), "text")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "note", got[0].Type)
	assert.Equal(t, "Review\nThis paragraph is too long.\nsplit it\ncite sources", got[0].Content)
}

func TestSuggestEmptyAnswer(t *testing.T) {
	srv := modelServer(t, "   ", nil)
	defer srv.Close()

	s := NewSuggester(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := s.Suggest(context.Background(), "text")
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestSuggestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	s := NewSuggester(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := s.Suggest(context.Background(), "text")
	require.Error(t, err)
}
