// ABOUTME: Tests for remote control message types
// ABOUTME: Verifies the JSON wire names and payload decoding
package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestPlayerCommandDecode(t *testing.T) {
	raw := `{"type":"player/command","payload":{"command":"seek","seconds":12.5}}`

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if msg.Type != TypePlayerCommand {
		t.Errorf("expected type %s, got %s", TypePlayerCommand, msg.Type)
	}

	var cmd PlayerCommand
	if err := msg.Decode(&cmd); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if cmd.Command != CommandSeek || cmd.Seconds != 12.5 {
		t.Errorf("unexpected command: %+v", cmd)
	}
}

func TestDecodeWrongPayload(t *testing.T) {
	msg := Message{Type: TypePlayerCommand, Payload: "not an object"}

	var cmd PlayerCommand
	err := msg.Decode(&cmd)
	if err == nil {
		t.Fatal("expected error for string payload")
	}
	if !strings.Contains(err.Error(), TypePlayerCommand) {
		t.Errorf("expected error to name the message type, got %v", err)
	}
}

func TestPlayerStatusWireNames(t *testing.T) {
	status := PlayerStatus{
		State:      "playing",
		Session:    "ready",
		Playing:    true,
		Position:   1.5,
		Volume:     80,
		SampleRate: 48000,
	}

	data, err := json.Marshal(Message{Type: TypePlayerStatus, Payload: status})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	for _, key := range []string{`"type":"player/status"`, `"sample_rate":48000`, `"volume":80`, `"downtime":false`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected %s in %s", key, data)
		}
	}
	if strings.Contains(string(data), "session_id") {
		t.Errorf("expected empty session_id to be omitted: %s", data)
	}
}

func TestClientHelloRoundTrip(t *testing.T) {
	hello := ClientHello{
		ClientID: "test-id",
		Name:     "Test Remote",
		Version:  Version,
		DeviceInfo: &DeviceInfo{
			ProductName:     "Test Product",
			Manufacturer:    "Test Mfg",
			SoftwareVersion: "0.1.0",
		},
	}

	data, err := json.Marshal(Message{Type: TypeClientHello, Payload: hello})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	var decoded ClientHello
	if err := msg.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded.ClientID != "test-id" || decoded.DeviceInfo == nil || decoded.DeviceInfo.Manufacturer != "Test Mfg" {
		t.Errorf("unexpected hello: %+v", decoded)
	}
}
