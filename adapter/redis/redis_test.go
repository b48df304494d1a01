package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/relay/adapter"
	"github.com/pithecene-io/relay/config"
	"github.com/pithecene-io/relay/types"
)

func testRecord() *types.Record {
	return &types.Record{
		ID:                 "rec-001",
		AppName:            "reviews",
		EventName:          "app_installed",
		EventType:          types.EventTypeUserAcquisition,
		EventValue:         "Basic",
		CustomerIdentifier: "shop.myshopify.com",
		CustomerInfo:       map[string]any{"email": "owner@example.com"},
		Payload:            map[string]any{"source": "app_store"},
		Timestamp:          time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC),
	}
}

// asyncReceive starts a goroutine that reads one message from the subscriber
// and sends it to the returned channel. Must be called BEFORE Capture to avoid
// deadlocking miniredis's synchronous pub/sub delivery.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{} // unreachable
	}
}

func TestCapture_PublishesJSON(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe(config.DefaultRedisChannel)
	ch := asyncReceive(sub)

	ok, err := a.Capture(t.Context(), testRecord())
	if err != nil || !ok {
		t.Fatalf("capture = %v, %v", ok, err)
	}

	msg := waitMessage(t, ch)
	if msg.Channel != config.DefaultRedisChannel {
		t.Errorf("expected channel %q, got %q", config.DefaultRedisChannel, msg.Channel)
	}

	var received types.Envelope
	if err := json.Unmarshal([]byte(msg.Message), &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if received.Version != types.EnvelopeVersion {
		t.Errorf("envelope_version = %q", received.Version)
	}
	if received.ID != "rec-001" || received.EventName != "app_installed" {
		t.Errorf("received = %+v", received)
	}
	if received.CustomerInfo["email"] != "owner@example.com" {
		t.Errorf("customer_info = %v", received.CustomerInfo)
	}
}

func TestCapture_PublishesMsgpack(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: "custom:events", Format: "MsgPack"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe("custom:events")
	ch := asyncReceive(sub)

	if _, err := a.Capture(t.Context(), testRecord()); err != nil {
		t.Fatalf("capture: %v", err)
	}

	msg := waitMessage(t, ch)
	if msg.Channel != "custom:events" {
		t.Errorf("expected channel custom:events, got %q", msg.Channel)
	}

	var received types.Envelope
	if err := msgpack.Unmarshal([]byte(msg.Message), &received); err != nil {
		t.Fatalf("msgpack unmarshal: %v", err)
	}
	if received.Version != types.EnvelopeVersion {
		t.Errorf("envelope_version = %q", received.Version)
	}
	if received.ID != "rec-001" || received.AppName != "reviews" {
		t.Errorf("received = %+v", received)
	}
	if !received.Timestamp.Equal(testRecord().Timestamp) {
		t.Errorf("timestamp = %v", received.Timestamp)
	}
}

func TestCapture_WhitelistMiss(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()
	a.SetWhitelist([]string{"app_uninstalled"})

	ok, err := a.Capture(t.Context(), testRecord())
	if ok || err != nil {
		t.Errorf("capture = %v, %v; want declined", ok, err)
	}
}

func TestCapture_UnreachableFailsOnce(t *testing.T) {
	a, err := New(Config{URL: "redis://127.0.0.1:1", Timeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	start := time.Now()
	ok, err := a.Capture(t.Context(), testRecord())
	if err == nil || ok {
		t.Fatalf("expected publish error, got %v, %v", ok, err)
	}
	if time.Since(start) > 3*time.Second {
		t.Errorf("capture should not retry, took %v", time.Since(start))
	}
}

func TestCapture_ContextCanceled(t *testing.T) {
	a, err := New(Config{URL: "redis://127.0.0.1:1", Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if _, err := a.Capture(ctx, testRecord()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty URL", Config{}},
		{"invalid URL", Config{URL: "not-a-redis-url"}},
		{"unknown format", Config{URL: "redis://localhost:6379", Format: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_DefaultsApplied(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.config.Channel != config.DefaultRedisChannel {
		t.Errorf("expected default channel %q, got %q", config.DefaultRedisChannel, a.config.Channel)
	}
	if a.config.Format != FormatJSON {
		t.Errorf("expected default format json, got %q", a.config.Format)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultTimeout, a.config.Timeout)
	}
}

func TestClose_ClosesConnection(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := a.Capture(t.Context(), testRecord()); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestKind(t *testing.T) {
	var k Kind
	if k.Available(&config.Config{}) {
		t.Error("unavailable without URL")
	}

	mr := miniredis.RunT(t)
	cfg := (&config.Config{Redis: config.RedisConfig{URL: "redis://" + mr.Addr()}}).WithDefaults()
	if !k.Available(cfg) {
		t.Fatal("expected available")
	}
	a, err := k.FromConfig(cfg, adapter.Deps{})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	defer func() { _ = a.(*Adapter).Close() }()

	bad := (&config.Config{Redis: config.RedisConfig{URL: "http://nope"}}).WithDefaults()
	if _, err := k.FromConfig(bad, adapter.Deps{}); err == nil {
		t.Error("expected invalid URL error")
	}
}
