// ABOUTME: Remote control message type definitions
// ABOUTME: Defines structs for all messages exchanged with remote controllers
package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// Version is the remote protocol version
	Version = 1

	// Path is the WebSocket endpoint of the remote server
	Path = "/audioqueue"
)

// Message types
const (
	TypeClientHello   = "client/hello"
	TypeClientGoodbye = "client/goodbye"
	TypeServerHello   = "server/hello"
	TypeServerError   = "server/error"
	TypePlayerCommand = "player/command"
	TypePlayerStatus  = "player/status"
	TypePlayerError   = "player/error"
)

// Player commands
const (
	CommandPlay   = "play"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandStop   = "stop"
	CommandSeek   = "seek"
	CommandVolume = "volume"
	CommandDevice = "device"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Decode unmarshals the payload of a received message into v
func (m Message) Decode(v interface{}) error {
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", m.Type, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", m.Type, err)
	}
	return nil
}

// ClientHello is sent by controllers to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the player's response to client/hello
type ServerHello struct {
	ServerID   string      `json:"server_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// ServerError rejects a controller
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ClientGoodbye is sent by controllers before disconnecting
type ClientGoodbye struct {
	Reason string `json:"reason"`
}

// PlayerCommand is a control request from a controller
type PlayerCommand struct {
	Command string  `json:"command"`
	Seconds float64 `json:"seconds,omitempty"` // seek target
	Volume  int     `json:"volume,omitempty"`  // 0-100
	Device  string  `json:"device,omitempty"`  // empty selects the default device
}

// PlayerStatus is broadcast to controllers on change and periodically
type PlayerStatus struct {
	State     string  `json:"state"`   // hardware source state
	Session   string  `json:"session"` // device session state
	SessionID string  `json:"session_id,omitempty"`
	Device    string  `json:"device,omitempty"`
	Layout    string  `json:"layout,omitempty"`
	Playing   bool    `json:"playing"`
	Downtime  bool    `json:"downtime"`
	Position  float64 `json:"position"`
	Volume    int     `json:"volume"`

	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`

	Codec      string `json:"codec,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	BitDepth   int    `json:"bit_depth,omitempty"`
}

// PlayerError reports a playback error to controllers
type PlayerError struct {
	Error string `json:"error"`
}
