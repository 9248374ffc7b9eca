package llm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Sure! Here it is: {\"a\":{\"b\":2}} Hope this helps.", `{"a":{"b":2}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.in)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, got)
		})
	}

	_, err := ExtractJSON("no json here")
	assert.True(t, errors.Is(err, ErrParse))
	_, err = ExtractJSON("{broken")
	assert.True(t, errors.Is(err, ErrParse))
	_, err = ExtractJSON("{\"a\": }")
	assert.True(t, errors.Is(err, ErrParse))
}

func TestFieldHelpers(t *testing.T) {
	obj, err := DecodeObject(`{"Verdict":"Likely_True","score":"85%","conf":0.4,"claims":["a"," ",{"text":"b"}],"single":"c"}`)
	require.NoError(t, err)

	s, ok := StringField(obj, "rating", "verdict")
	assert.True(t, ok)
	assert.Equal(t, "Likely_True", s)

	n, ok := NumberField(obj, "confidence", "score")
	assert.True(t, ok)
	assert.InDelta(t, 0.85, n, 1e-9)

	n, ok = NumberField(obj, "conf")
	assert.True(t, ok)
	assert.InDelta(t, 0.4, n, 1e-9)

	_, ok = NumberField(obj, "missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, StringsField(obj, "claims"))
	assert.Equal(t, []string{"c"}, StringsField(obj, "single"))
	assert.Nil(t, StringsField(obj, "none"))
}

func TestRetryBacksOffOnRateLimitOnly(t *testing.T) {
	var calls int32
	base := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", ErrRateLimited
		}
		return "ok", nil
	})
	var delays []time.Duration
	r := &Retry{Base: base, Attempts: 4, BaseDelay: time.Second, sleep: func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}}

	out, err := r.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)

	atomic.StoreInt32(&calls, 0)
	transport := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", ErrTransport
	})
	r = &Retry{Base: transport, Attempts: 4, sleep: func(context.Context, time.Duration) error { return nil }}
	_, err = r.Complete(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	var calls int32
	base := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", ErrRateLimited
	})
	r := &Retry{Base: base, Attempts: 3, sleep: func(context.Context, time.Duration) error { return nil }}
	_, err := r.Complete(context.Background(), Request{})
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryAppliesCallTimeout(t *testing.T) {
	base := CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return "ok", nil
	})
	_, err := WithRetry(base, "b", 1, time.Second).Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Nil(t, WithRetry(nil, "b", 1, time.Second))
}

func TestThrottlePassesThrough(t *testing.T) {
	base := CompleterFunc(func(ctx context.Context, req Request) (string, error) { return req.User, nil })
	c := WithThrottle(base, 100)
	out, err := c.Complete(context.Background(), Request{User: "x"})
	require.NoError(t, err)
	assert.Equal(t, "x", out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := WithThrottle(base, 0.001)
	_, _ = slow.Complete(context.Background(), Request{})
	_, err = slow.Complete(ctx, Request{})
	assert.True(t, errors.Is(err, ErrTransport))
}

func TestBackendCacheCreatesOnce(t *testing.T) {
	cache := NewBackendCache()
	var created int32
	create := func() (Completer, error) {
		atomic.AddInt32(&created, 1)
		time.Sleep(5 * time.Millisecond)
		return CompleterFunc(func(context.Context, Request) (string, error) { return "", nil }), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrCreate("gpt-4o", create)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&created))
	assert.Equal(t, 1, cache.Len())

	_, err := cache.GetOrCreate("bad", func() (Completer, error) { return nil, ErrNotConfigured })
	assert.True(t, errors.Is(err, ErrNotConfigured))
	assert.Equal(t, 1, cache.Len())
}

func TestSystemPrompts(t *testing.T) {
	for _, name := range []string{PromptOCR, PromptExtract, PromptVerify, PromptBias, PromptChat} {
		p, ok := SystemPrompt(name)
		assert.True(t, ok, name)
		assert.NotEmpty(t, p, name)
	}
	_, ok := SystemPrompt("nope")
	assert.False(t, ok)
}
