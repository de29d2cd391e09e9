package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-agent/internal/storage/cache"
	"voice-agent/internal/storage/vector"
	"voice-agent/pkg/config"
)

func TestHashEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	h := NewHashEmbedder(0)
	a, err := h.Embed(ctx, []string{"I like green tea", "I like green tea"})
	require.NoError(t, err)
	require.Len(t, a, 2)
	assert.Equal(t, a[0], a[1])
	assert.Len(t, a[0], DefaultHashDimension)

	norm := 0.0
	for _, x := range a[0] {
		norm += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestHashEmbedder_SharedWordsAreCloser(t *testing.T) {
	ctx := context.Background()
	vecs, err := NewHashEmbedder(128).Embed(ctx, []string{"green tea", "I drink green tea daily", "stock market crash"})
	require.NoError(t, err)
	near := vector.Euclidean(vecs[0], vecs[1])
	far := vector.Euclidean(vecs[0], vecs[2])
	assert.Less(t, near, far)
}

func TestHashEmbedder_EmptyText(t *testing.T) {
	vecs, err := NewHashEmbedder(8).Embed(context.Background(), []string{""})
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 8), vecs[0])
}

func TestOpenAIEmbedder_ReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, []string{"a", "b"}, body.Input)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder("m", "sk-test", srv.URL, 2)
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vecs)
	assert.Equal(t, 2, e.Dimension())
}

func TestOpenAIEmbedder_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad"}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIEmbedder("m", "k", srv.URL, 2).Embed(context.Background(), []string{"a"})
	assert.Error(t, err)
}

type countingEmbedder struct {
	calls int
	texts []string
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	c.calls++
	c.texts = append(c.texts, texts...)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int { return 1 }

func TestCachedEmbedder_OnlyEmbedsMisses(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	e := NewCachedEmbedder(inner, cache.NewMemoryStore(0), nil)

	first, err := e.Embed(ctx, []string{"ab", "abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2}, {3}}, first)

	second, err := e.Embed(ctx, []string{"abc", "abcd"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{3}, {4}}, second)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, []string{"ab", "abc", "abcd"}, inner.texts)
}

func TestCachedEmbedder_PropagatesError(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	_, err := NewCachedEmbedder(inner, cache.NewMemoryStore(0), nil).Embed(context.Background(), []string{"x"})
	assert.Error(t, err)
}

func TestCachedEmbedder_NilStore(t *testing.T) {
	inner := &countingEmbedder{}
	assert.Same(t, inner, NewCachedEmbedder(inner, nil, nil))
}

func TestEinoAdapterRoundTrip(t *testing.T) {
	h := NewHashEmbedder(16)
	wrapped := NewEinoEmbedder(NewEinoAdapter(h), 16)
	a, err := wrapped.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	b, _ := h.Embed(context.Background(), []string{"hello"})
	assert.Equal(t, b, a)
	assert.Equal(t, 16, wrapped.Dimension())
}

func TestNewEmbedder(t *testing.T) {
	e, err := NewEmbedder(config.EmbeddingConfig{Type: "hash", Dimension: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimension())
	_, err = NewEmbedder(config.EmbeddingConfig{Type: "bogus"})
	assert.Error(t, err)
}
