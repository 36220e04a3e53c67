package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		name     string
		flag     string
		provider string
		model    string
		endpoint string
		wantErr  bool
	}{
		{
			name:     "ollama simple",
			flag:     "ollama/all-minilm",
			provider: "ollama",
			model:    "all-minilm",
			endpoint: "http://localhost:11434/v1/embeddings",
		},
		{
			name:     "model with slashes",
			flag:     "openrouter/sentence-transformers/all-MiniLM-L6-v2",
			provider: "openrouter",
			model:    "sentence-transformers/all-MiniLM-L6-v2",
			endpoint: "https://openrouter.ai/api/v1/embeddings",
		},
		{name: "empty flag", flag: "", wantErr: true},
		{name: "no slash", flag: "ollama", wantErr: true},
		{name: "unknown provider", flag: "nope/model", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseFlag(tt.flag)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFlag failed: %v", err)
			}
			if cfg.Provider != tt.provider || cfg.Model != tt.model || cfg.Endpoint != tt.endpoint {
				t.Errorf("got %+v", cfg)
			}
		})
	}
}

func newFakeServer(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := apiResponse{}
		for i, text := range req.Input {
			vec := make([]float32, dims)
			// deterministic per text
			for j := range vec {
				vec[j] = float32(len(text)+i+j) / 100
			}
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: vec, Index: i})
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	c, err := NewClient(&Config{
		Provider:    "custom",
		Model:       "test-model",
		Endpoint:    endpoint,
		MaxRetries:  0,
		TimeoutSecs: 5,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestEmbedBatch_RoundTrip(t *testing.T) {
	srv := newFakeServer(t, 8)
	defer srv.Close()

	c := testClient(t, srv.URL)
	vecs, err := c.EmbedBatch(context.Background(), []string{"hello", "world wide"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if len(vecs[0]) != 8 {
		t.Errorf("expected 8 dimensions, got %d", len(vecs[0]))
	}
	if c.Dimensions() != 8 {
		t.Errorf("Dimensions should be auto-detected, got %d", c.Dimensions())
	}
}

func TestEmbedBatch_EmptyTextsGetNilVectors(t *testing.T) {
	srv := newFakeServer(t, 4)
	defer srv.Close()

	c := testClient(t, srv.URL)
	vecs, err := c.EmbedBatch(context.Background(), []string{"", "real text", "  "})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if vecs[0] != nil || vecs[2] != nil {
		t.Error("blank inputs should map to nil vectors")
	}
	if len(vecs[1]) != 4 {
		t.Errorf("real input should be embedded, got %v", vecs[1])
	}
}

func TestEmbedBatch_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	_, err := c.EmbedBatch(context.Background(), []string{"text"})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected HTTP 500 error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{Provider: "openai", Model: "m", Endpoint: "http://x", TimeoutSecs: 10}
	if err := cfg.Validate(); err == nil {
		t.Error("openai without API key should fail validation")
	}
	cfg.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
