package errors

import (
	"errors"
	"testing"
)

func TestWrap(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil, msg) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrap(err, "context")
	if wrapped == nil {
		t.Fatal("Wrap(err, msg) should not return nil")
	}
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestWrapf(t *testing.T) {
	if Wrapf(nil, "format %s", "x") != nil {
		t.Error("Wrapf(nil, ...) should return nil")
	}
	err := errors.New("base")
	wrapped := Wrapf(err, "id=%s", "a")
	if !errors.Is(wrapped, err) {
		t.Error("wrapped error should unwrap to base")
	}
}

func TestKindOf(t *testing.T) {
	base := errors.New("connection refused")
	cases := []struct {
		err  error
		want Kind
	}{
		{Validation("supervisor", "userMessages is empty"), KindValidation},
		{Upstream("llm.chat", base), KindUpstream},
		{Storage("kv.upsert", base), KindStorage},
		{LoopExhaustion("graph.execute", 10), KindLoopExhaustion},
		{Wrap(Upstream("embed", base), "semantic search"), KindUpstream},
		{base, KindUnknown},
	}
	for _, c := range cases {
		if got := KindOf(c.err); got != c.want {
			t.Errorf("KindOf(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestUpstreamStorage_NilPassthrough(t *testing.T) {
	if Upstream("x", nil) != nil {
		t.Error("Upstream(nil) should be nil")
	}
	if Storage("x", nil) != nil {
		t.Error("Storage(nil) should be nil")
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	base := errors.New("timeout")
	err := Upstream("researcher.research", base)
	if !errors.Is(err, base) {
		t.Error("Upstream error should unwrap to base")
	}
	if got := err.Error(); got != "upstream: researcher.research: timeout" {
		t.Errorf("Error() = %q", got)
	}
}
