package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/assert/v2"
)

func vector(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = float32(i) / float32(n)
	}
	return v
}

func TestEmbed(t *testing.T) {
	var gotInput, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotInput = body["inputs"]
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(vector(Dimension))
	}))
	defer srv.Close()

	client := NewHFClient(srv.URL, "hf-key")
	vec, err := client.Embed(context.Background(), "Postgres 18\nreleased")

	assert.Equal(t, nil, err)
	assert.Equal(t, Dimension, len(vec))
	assert.Equal(t, "Postgres 18released", gotInput)
	assert.Equal(t, "Bearer hf-key", gotAuth)
}

func TestEmbedBatchResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([][]float32{vector(Dimension)})
	}))
	defer srv.Close()

	vec, err := NewHFClient(srv.URL, "").Embed(context.Background(), "title")
	assert.Equal(t, nil, err)
	assert.Equal(t, Dimension, len(vec))
}

func TestEmbedWrongDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(vector(8))
	}))
	defer srv.Close()

	_, err := NewHFClient(srv.URL, "").Embed(context.Background(), "title")
	assert.Equal(t, true, errors.Is(err, ErrDimension))
}

func TestEmbedUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"Model is currently loading"}`))
	}))
	defer srv.Close()

	_, err := NewHFClient(srv.URL, "").Embed(context.Background(), "title")
	assert.NotEqual(t, nil, err)
}
