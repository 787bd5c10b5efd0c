package proto

import (
	"encoding/json"
	"testing"
)

func TestDecodeWrappedDialect(t *testing.T) {
	raw := []byte(`{"type":"chat_message","timestamp":123,"data":{"message":"hi"}}`)
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if env.Type != TypeChatMessage || env.Timestamp != 123 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	var payload ChatMessagePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if payload.Message != "hi" {
		t.Fatalf("expected message %q, got %q", "hi", payload.Message)
	}
}

func TestDecodeUnwrappedDialect(t *testing.T) {
	raw := []byte(`{"type":"chat_message","timestamp":123,"message":"hi"}`)
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	var payload ChatMessagePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if payload.Message != "hi" {
		t.Fatalf("expected message %q from unwrapped dialect, got %q", "hi", payload.Message)
	}
}

func TestItemKindAliases(t *testing.T) {
	kind, ok := ItemKindFromWire("sword")
	if !ok || kind != "KILL_SWORD" {
		t.Fatalf("expected sword alias to map to KILL_SWORD, got %q ok=%v", kind, ok)
	}
	kind, ok = ItemKindFromWire("kill_sword")
	if !ok || kind != "KILL_SWORD" {
		t.Fatalf("expected kill_sword to map to KILL_SWORD, got %q ok=%v", kind, ok)
	}
	if _, ok := ItemKindFromWire("nonsense"); ok {
		t.Fatalf("expected unknown wire item type to fail")
	}
	if got := ItemKindToWire("KILL_SWORD"); got != "kill_sword" {
		t.Fatalf("expected canonical wire form kill_sword, got %q", got)
	}
}

func TestEncodeProducesWrappedForm(t *testing.T) {
	env, err := Encode(TypePong, 42, PongPayload{Timestamp: 7})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if _, ok := decoded["data"]; !ok {
		t.Fatalf("expected encoded envelope to carry a data field")
	}
}
