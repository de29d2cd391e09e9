package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-agent/pkg/config"
	"voice-agent/pkg/metrics"
)

func TestOpenAIClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m1", body.Model)
		assert.Equal(t, []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "hi"}}, body.Messages)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"GREETING"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", "m1", "sk-test", srv.URL)
	out, err := c.Chat(context.Background(), []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "hi"}}, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "GREETING", out)
	assert.Equal(t, "m1", c.Model())
	assert.Equal(t, "openai", c.Provider())
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	_, err := NewOpenAIClient("openai", "m", "k", srv.URL).Chat(context.Background(), nil, GenerateOptions{})
	assert.Error(t, err)
}

type fakeChatModel struct {
	got []*schema.Message
	err error
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage("hello from eino", nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func TestEinoClient_Chat(t *testing.T) {
	fake := &fakeChatModel{}
	c := NewEinoClient(fake, "", "gpt")
	out, err := c.Chat(context.Background(), []Message{{Role: "system", Content: "s"}, {Role: "user", Content: "u"}}, GenerateOptions{Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "hello from eino", out)
	require.Len(t, fake.got, 2)
	assert.Equal(t, schema.System, fake.got[0].Role)
	assert.Equal(t, schema.User, fake.got[1].Role)
	assert.Equal(t, "eino", c.Provider())

	fake.err = errors.New("boom")
	_, err = c.Chat(context.Background(), nil, GenerateOptions{})
	assert.Error(t, err)
}

type stubClient struct {
	mu       sync.Mutex
	active   int
	maxSeen  int
	provider string
}

func (s *stubClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	s.mu.Lock()
	s.active++
	if s.active > s.maxSeen {
		s.maxSeen = s.active
	}
	s.mu.Unlock()
	time.Sleep(5 * time.Millisecond)
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return "ok", nil
}

func (s *stubClient) Model() string    { return "stub" }
func (s *stubClient) Provider() string { return s.provider }

func TestRateLimitedClient_MaxConcurrent(t *testing.T) {
	inner := &stubClient{provider: "p"}
	limiter := NewLLMRateLimiter(map[string]config.LLMRateLimitConfig{
		"p": {MaxConcurrent: 2},
	}, nil)
	c := NewRateLimitedClient(inner, limiter)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
			assert.NoError(t, err)
			assert.Equal(t, "ok", out)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, inner.maxSeen, 2)
	assert.Equal(t, 0, limiter.Stats("p")["current_concurrent"])
}

func TestRateLimiter_ContextCancelled(t *testing.T) {
	limiter := NewLLMRateLimiter(map[string]config.LLMRateLimitConfig{"p": {MaxConcurrent: 1}}, nil)
	require.NoError(t, limiter.Wait(context.Background(), "p", 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Wait(ctx, "p", 1))
	limiter.Release("p")
}

func TestRateLimiter_DefaultsForUnknownProvider(t *testing.T) {
	limiter := NewLLMRateLimiter(nil, nil)
	require.NoError(t, limiter.Wait(context.Background(), "new", 10))
	stats := limiter.Stats("new")
	assert.Equal(t, DefaultLLMLimit.MaxConcurrent, stats["max_concurrent"])
	assert.Equal(t, 10, stats["tokens_used_minute"])
	limiter.Release("new")
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, estimateTokens(nil, 0))
	assert.Equal(t, 2+10, estimateTokens([]Message{{Content: "12345678"}}, 10))
}

func TestNewClient(t *testing.T) {
	c, err := NewClient(config.LLMConfig{Provider: "qwen", Model: "qwen-plus", BaseURL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, "qwen", c.Provider())
	_, err = NewClient(config.LLMConfig{Provider: "unknown"})
	assert.Error(t, err)
}

func TestOpenAIClient_ClientErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", "m1", "sk-test", srv.URL)
	_, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestOpenAIClient_RetriesServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"recovered"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("openai", "m1", "sk-test", srv.URL)
	out, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

type failingClient struct{ stubClient }

func (f *failingClient) Chat(ctx context.Context, messages []Message, options GenerateOptions) (string, error) {
	return "", errors.New("upstream down")
}

func TestRateLimitedClient_RecordsOutcome(t *testing.T) {
	ok := NewRateLimitedClient(&stubClient{provider: "metrics-ok"}, nil)
	bad := NewRateLimitedClient(&failingClient{stubClient{provider: "metrics-bad"}}, nil)

	_, err := ok.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.NoError(t, err)
	_, err = bad.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues("metrics-ok", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LLMRequestsTotal.WithLabelValues("metrics-bad", "error")))
}
