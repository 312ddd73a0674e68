// ABOUTME: WebSocket client for controlling a player remotely
// ABOUTME: Handles connection, handshake, commands and status routing
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioqueue/internal/protocol"
	"github.com/Resonate-Protocol/audioqueue/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when sending on a closed client
var ErrNotConnected = errors.New("not connected")

// ClientConfig holds controller configuration
type ClientConfig struct {
	ServerAddr string // host:port of the player
	ClientID   string // default: random uuid
	Name       string
}

// RemoteClient controls a player over WebSocket
type RemoteClient struct {
	config ClientConfig
	conn   *websocket.Conn
	hello  protocol.ServerHello
	mu     sync.RWMutex

	// Message channels
	Status chan protocol.PlayerStatus
	Errors chan protocol.PlayerError

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new remote control client
func NewClient(config ClientConfig) *RemoteClient {
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}
	if config.Name == "" {
		config.Name = "audioqueue-remote"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &RemoteClient{
		config: config,
		Status: make(chan protocol.PlayerStatus, 10),
		Errors: make(chan protocol.PlayerError, 10),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *RemoteClient) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: protocol.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *RemoteClient) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}
	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var serr protocol.ServerError
		msg.Decode(&serr)
		return fmt.Errorf("rejected by player: %s", serr.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var serverHello protocol.ServerHello
	if err := msg.Decode(&serverHello); err != nil {
		return err
	}

	c.mu.Lock()
	c.hello = serverHello
	c.mu.Unlock()

	log.Printf("Handshake complete with %s (ID: %s)", serverHello.Name, serverHello.ServerID)
	return nil
}

// ServerHello returns the hello received from the player
func (c *RemoteClient) ServerHello() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// Send sends a player command
func (c *RemoteClient) Send(cmd protocol.PlayerCommand) error {
	return c.sendJSON(protocol.Message{Type: protocol.TypePlayerCommand, Payload: cmd})
}

// sendJSON sends a JSON message
func (c *RemoteClient) sendJSON(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *RemoteClient) readMessages() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Printf("Read error: %v", err)
			}
			return
		}
		c.handleJSONMessage(data)
	}
}

// handleJSONMessage routes status and error messages
func (c *RemoteClient) handleJSONMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypePlayerStatus:
		var status protocol.PlayerStatus
		if err := msg.Decode(&status); err != nil {
			log.Printf("%v", err)
			return
		}
		select {
		case c.Status <- status:
		default:
			// keep the newest status
			select {
			case <-c.Status:
			default:
			}
			c.Status <- status
		}

	case protocol.TypePlayerError:
		var perr protocol.PlayerError
		if err := msg.Decode(&perr); err != nil {
			log.Printf("%v", err)
			return
		}
		select {
		case c.Errors <- perr:
		case <-time.After(100 * time.Millisecond):
			log.Printf("Error channel full, dropping message")
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// Close says goodbye and closes the connection
func (c *RemoteClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}
	c.connected = false
	c.cancel()

	c.conn.WriteJSON(protocol.Message{
		Type:    protocol.TypeClientGoodbye,
		Payload: protocol.ClientGoodbye{Reason: "shutdown"},
	})
	return c.conn.Close()
}
