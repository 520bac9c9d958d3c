package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestLocalBusRoutesByKey(t *testing.T) {
	bus := NewLocalBus(zaptest.NewLogger(t))
	var got []string
	bus.Subscribe("a", func(_ context.Context, data json.RawMessage) error {
		got = append(got, "a:"+string(data))
		return nil
	})
	bus.Subscribe("b", func(_ context.Context, data json.RawMessage) error {
		got = append(got, "b:"+string(data))
		return nil
	})

	if err := bus.PublishRaw(context.Background(), "a", "m1", []byte(`1`)); err != nil {
		t.Fatalf("PublishRaw: %v", err)
	}
	if err := bus.PublishRaw(context.Background(), "none", "m2", []byte(`2`)); err != nil {
		t.Fatalf("unrouted message should be dropped, got %v", err)
	}
	if len(got) != 1 || got[0] != "a:1" {
		t.Fatalf("got %v", got)
	}
}

func TestLocalBusReturnsHandlerErrors(t *testing.T) {
	bus := NewLocalBus(zaptest.NewLogger(t))
	boom := errors.New("boom")
	bus.Subscribe("x", func(context.Context, json.RawMessage) error { return boom })
	if err := bus.PublishRaw(context.Background(), "x", "m", nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	bus.Subscribe("p", func(context.Context, json.RawMessage) error { panic("bad") })
	if err := bus.PublishRaw(context.Background(), "p", "m", nil); err == nil {
		t.Fatal("expected panic converted to error")
	}
}
