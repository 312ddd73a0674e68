// ABOUTME: WebSocket remote control server for the player
// ABOUTME: Accepts controller connections, applies commands and broadcasts status
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioqueue/internal/protocol"
	"github.com/Resonate-Protocol/audioqueue/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultStatusInterval = time.Second
	pingInterval          = 30 * time.Second
	writeDeadline         = 10 * time.Second
	sendBuffer            = 100
)

// ErrSendBufferFull is returned when a controller does not keep up
var ErrSendBufferFull = errors.New("client send buffer full")

// Controller is the player the server drives
type Controller interface {
	// Command applies a control request
	Command(cmd protocol.PlayerCommand) error
	// Status returns the current player status
	Status() protocol.PlayerStatus
}

// Config holds server configuration
type Config struct {
	Port           int
	Name           string
	StatusInterval time.Duration // periodic status broadcast (default: 1s)
	Debug          bool
}

// Server serves remote controllers over WebSocket
type Server struct {
	config   Config
	serverID string
	ctrl     Controller

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server
	listener   net.Listener

	clients   map[string]*Client
	clientsMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Client is a connected controller
type Client struct {
	ID   string
	Name string
	Conn *websocket.Conn

	sendChan chan interface{}
	mu       sync.Mutex
	closed   bool
}

// New creates a remote control server
func New(config Config, ctrl Controller) *Server {
	if config.StatusInterval == 0 {
		config.StatusInterval = defaultStatusInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		ctrl:     ctrl,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// controllers live on the local network
				origin := r.Header.Get("Origin")
				if origin != "" {
					log.Printf("Accepting remote control from origin: %s", origin)
				}
				return true
			},
		},
		clients: make(map[string]*Client),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s
}

// ID returns the server id sent in server/hello
func (s *Server) ID() string {
	return s.serverID
}

// Handler returns the HTTP handler serving the remote endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start listens on the configured port and starts the status broadcaster
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{Handler: s.mux}

	log.Printf("Remote control listening on %s%s (ID: %s)", ln.Addr(), protocol.Path, s.serverID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Remote control server error: %v", err)
		}
	}()

	s.StartBroadcast()
	return nil
}

// StartBroadcast sends the player status to every controller on an interval
func (s *Server) StartBroadcast() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.config.StatusInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.BroadcastStatus()
			}
		}
	}()
}

// Addr returns the listening address after Start
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes every controller connection and the listener
func (s *Server) Stop() {
	s.cancel()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Printf("Remote control shutdown error: %v", err)
		}
	}

	// hijacked connections are not closed by Shutdown
	s.clientsMu.RLock()
	for _, c := range s.clients {
		c.Conn.Close()
	}
	s.clientsMu.RUnlock()

	s.wg.Wait()
}

// Clients returns the number of connected controllers
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// BroadcastStatus sends the current status to every controller
func (s *Server) BroadcastStatus() {
	s.Broadcast(protocol.TypePlayerStatus, s.ctrl.Status())
}

// NotifyError sends a playback error to every controller
func (s *Server) NotifyError(err error) {
	s.Broadcast(protocol.TypePlayerError, protocol.PlayerError{Error: err.Error()})
}

// Broadcast sends a message to every controller
func (s *Server) Broadcast(msgType string, payload interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		if err := c.send(protocol.Message{Type: msgType, Payload: payload}); err != nil && s.config.Debug {
			log.Printf("[DEBUG] Dropping %s for %s: %v", msgType, c.Name, err)
		}
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New remote connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection manages a controller connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	if s.ctx.Err() != nil {
		log.Printf("Rejecting connection during shutdown")
		return
	}

	hello, err := readHello(conn)
	if err != nil {
		log.Printf("Remote handshake failed: %v", err)
		return
	}

	log.Printf("Remote hello: %s (ID: %s)", hello.Name, hello.ClientID)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, sendBuffer),
	}

	s.clientsMu.Lock()
	if existing, exists := s.clients[hello.ClientID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", hello.ClientID, existing.Name)

		writeJSON(conn, protocol.Message{
			Type: protocol.TypeServerError,
			Payload: protocol.ServerError{
				Error:   "duplicate_client_id",
				Message: "Client ID already connected",
			},
		})
		return
	}
	s.clients[client.ID] = client
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		client.close()
		log.Printf("Remote disconnected: %s", client.Name)
	}()

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  protocol.Version,
		DeviceInfo: &protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	}
	if err := client.send(protocol.Message{Type: protocol.TypeServerHello, Payload: serverHello}); err != nil {
		log.Printf("Error sending server hello: %v", err)
		return
	}
	client.send(protocol.Message{Type: protocol.TypePlayerStatus, Payload: s.ctrl.Status()})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		client.writer()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if !s.handleClientMessage(client, data) {
			return
		}
	}
}

// readHello waits for and validates client/hello
func readHello(conn *websocket.Conn) (protocol.ClientHello, error) {
	var hello protocol.ClientHello

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return hello, fmt.Errorf("error reading hello: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return hello, fmt.Errorf("error unmarshaling message: %w", err)
	}
	if msg.Type != protocol.TypeClientHello {
		return hello, fmt.Errorf("expected %s, got %s", protocol.TypeClientHello, msg.Type)
	}
	if err := msg.Decode(&hello); err != nil {
		return hello, err
	}

	if hello.ClientID == "" {
		return hello, errors.New("client hello missing ClientID")
	}
	if hello.Name == "" {
		return hello, errors.New("client hello missing Name")
	}
	return hello, nil
}

// handleClientMessage processes one controller message. It returns false
// when the controller says goodbye.
func (s *Server) handleClientMessage(client *Client, data []byte) bool {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return true
	}

	switch msg.Type {
	case protocol.TypePlayerCommand:
		var cmd protocol.PlayerCommand
		if err := msg.Decode(&cmd); err != nil {
			log.Printf("Error parsing command from %s: %v", client.Name, err)
			client.send(protocol.Message{Type: protocol.TypePlayerError, Payload: protocol.PlayerError{Error: err.Error()}})
			return true
		}

		if s.config.Debug {
			log.Printf("[DEBUG] Command from %s: %+v", client.Name, cmd)
		}
		if err := s.ctrl.Command(cmd); err != nil {
			log.Printf("Command %s from %s failed: %v", cmd.Command, client.Name, err)
			client.send(protocol.Message{Type: protocol.TypePlayerError, Payload: protocol.PlayerError{Error: err.Error()}})
			return true
		}
		s.BroadcastStatus()

	case protocol.TypeClientGoodbye:
		var bye protocol.ClientGoodbye
		msg.Decode(&bye)
		log.Printf("Remote %s said goodbye: %s", client.Name, bye.Reason)
		return false

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
	return true
}

// send queues a message for the writer
func (c *Client) send(msg interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return net.ErrClosed
	}
	select {
	case c.sendChan <- msg:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.sendChan)
	}
}

// writer sends queued messages and keeps the connection alive
func (c *Client) writer() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := writeJSON(c.Conn, msg); err != nil {
				log.Printf("Error writing message to %s: %v", c.Name, err)
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				return
			}
		}
	}
}

func writeJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("error marshaling message: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
