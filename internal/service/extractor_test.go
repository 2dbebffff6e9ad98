package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIExtractor_Extract(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		content := `{"characters":[{"name":"Sildar","isNPC":true}],"events":[{"title":"Rescue","eventType":"combat","linkedCharacters":["Sildar"]}],"lore":[{"title":"Neverwinter"}]}`
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": content}}},
		})
	}))
	defer srv.Close()

	ext := NewOpenAIExtractor(srv.URL+"/v1/", "sk-test", "gpt-test", time.Second)
	out, err := ext.Extract(context.Background(), "session notes", ExtractOptions{ExtractCharacters: true, ExtractEvents: true})
	require.NoError(t, err)

	assert.Equal(t, "gpt-test", gotBody["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, gotBody["response_format"])

	require.Len(t, out.Characters, 1)
	assert.Equal(t, "Sildar", out.Characters[0].Name)
	assert.True(t, out.Characters[0].IsNPC)
	require.Len(t, out.Events, 1)
	assert.Equal(t, []string{"Sildar"}, out.Events[0].LinkedCharacters)
	// not requested
	assert.Empty(t, out.Lore)
	assert.NotNil(t, out.Plots)
}

func TestOpenAIExtractor_ProviderErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"http error", http.StatusTooManyRequests, `{"error":"slow down"}`, "API 오류 (429)"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "텍스트를 찾을 수 없습니다"},
		{"non json content", http.StatusOK, `{"choices":[{"message":{"content":"sorry"}}]}`, "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAIExtractor(srv.URL, "", "m", time.Second).Extract(context.Background(), "x", AllExtractOptions())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDisabledExtractor(t *testing.T) {
	_, err := DisabledExtractor{}.Extract(context.Background(), "x", AllExtractOptions())
	assert.True(t, errors.Is(err, common.ErrExtractorDisabled))
}

func TestTruncateStr(t *testing.T) {
	assert.Equal(t, "short", truncateStr("short", 200))
	assert.Equal(t, "abc...", truncateStr("abcdef", 3))

	// "드래곤" is 9 bytes; cutting at 4 must not split the second rune
	got := truncateStr("드래곤", 4)
	assert.Equal(t, "드...", got)
	assert.True(t, utf8.ValidString(got))
}
