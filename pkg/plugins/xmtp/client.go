// Package xmtp is the messaging bootstrap plugin. It maintains a WebSocket
// session to an XMTP gateway node, authenticates by signing the gateway's
// challenge with the agent's EVM key, and runs a Service that routes
// inbound conversation messages through the dispatcher, falling back to a
// static or generated reply when no action claims them.
package xmtp

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"

	"github.com/wilhg/conduit/pkg/errmodel"
)

const (
	// reconnectAttempts bounds redials after a dropped session.
	reconnectAttempts = 3
	// reconnectDelay separates consecutive redials.
	reconnectDelay = 2 * time.Second

	pingInterval = 30 * time.Second
	readTimeout  = 2 * pingInterval

	handshakeTimeout = 10 * time.Second
)

// Envelope is one conversation message on the gateway wire.
type Envelope struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderAddress  string    `json:"sender_address"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sent_at"`
}

// frame is the gateway's JSON framing. Type selects which fields are set:
// "challenge" and "auth" during the handshake, "ready" on success,
// "message" for envelopes in both directions, "error" for gateway faults.
type frame struct {
	Type      string    `json:"type"`
	Challenge string    `json:"challenge,omitempty"`
	Address   string    `json:"address,omitempty"`
	Signature string    `json:"signature,omitempty"`
	Error     string    `json:"error,omitempty"`
	Message   *Envelope `json:"message,omitempty"`
}

// Client is an authenticated gateway session. Reads run on a background
// goroutine feeding Messages; writes are serialized. A dropped session is
// redialed a fixed number of times before the message channel closes.
type Client struct {
	url  string
	key  *ecdsa.PrivateKey
	addr common.Address
	log  *slog.Logger

	mu   sync.Mutex // guards conn writes and swaps
	conn *websocket.Conn

	msgs      chan Envelope
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewClient parses the key and prepares a client. It does not dial;
// call Connect.
func NewClient(gatewayURL, privateKeyHex string, log *slog.Logger) (*Client, error) {
	if gatewayURL == "" {
		return nil, errmodel.Config("missing_setting", "XMTP_GATEWAY_URL is required", nil)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errmodel.Config("bad_key", "EVM_PRIVATE_KEY is not a valid secp256k1 key",
			nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url:     gatewayURL,
		key:     key,
		addr:    crypto.PubkeyToAddress(key.PublicKey),
		log:     log,
		msgs:    make(chan Envelope, 64),
		closeCh: make(chan struct{}),
	}, nil
}

// Address is the wallet address the client authenticates as.
func (c *Client) Address() common.Address { return c.addr }

// Messages streams inbound envelopes. The channel closes when the session
// is closed or reconnection gives up.
func (c *Client) Messages() <-chan Envelope { return c.msgs }

// Connect dials the gateway, completes the challenge handshake, and starts
// the read loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.run()
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.url, http.Header{})
	if err != nil {
		ectx := map[string]any{"url": c.url}
		if resp != nil {
			ectx["status"] = resp.StatusCode
		}
		return nil, errmodel.Network("dial_failed", "gateway connection failed", ectx, err)
	}
	if err := c.handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	return conn, nil
}

// handshake answers the gateway's challenge with a personal-message
// signature and waits for the ready frame.
func (c *Client) handshake(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var ch frame
	if err := conn.ReadJSON(&ch); err != nil {
		return errmodel.Network("handshake", "reading challenge failed", nil, err)
	}
	if ch.Type != "challenge" || ch.Challenge == "" {
		return errmodel.Network("handshake", "gateway did not send a challenge",
			map[string]any{"type": ch.Type}, nil)
	}
	sig, err := c.signChallenge(ch.Challenge)
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(frame{Type: "auth", Address: c.addr.Hex(), Signature: sig}); err != nil {
		return errmodel.Network("handshake", "sending auth failed", nil, err)
	}
	var ready frame
	if err := conn.ReadJSON(&ready); err != nil {
		return errmodel.Network("handshake", "reading auth result failed", nil, err)
	}
	if ready.Type != "ready" {
		return errmodel.Network("auth_rejected", "gateway rejected authentication",
			map[string]any{"type": ready.Type, "error": ready.Error}, nil)
	}
	return nil
}

// signChallenge signs the hex challenge bytes under the Ethereum
// personal-message prefix.
func (c *Client) signChallenge(challenge string) (string, error) {
	raw, err := hexutil.Decode(challenge)
	if err != nil {
		return "", errmodel.Network("handshake", "challenge is not valid hex",
			map[string]any{"challenge": challenge}, err)
	}
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(raw), raw)
	sig, err := crypto.Sign(crypto.Keccak256([]byte(prefixed)), c.key)
	if err != nil {
		return "", errmodel.System("sign_failed", "challenge signature failed", nil, err)
	}
	return hexutil.Encode(sig), nil
}

// Send delivers text into a conversation.
func (c *Client) Send(conversationID, content string) error {
	env := Envelope{
		ConversationID: conversationID,
		SenderAddress:  c.addr.Hex(),
		Content:        content,
		SentAt:         time.Now().UTC(),
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errmodel.Network("not_connected", "session is not established", nil, nil)
	}
	if err := c.conn.WriteJSON(frame{Type: "message", Message: &env}); err != nil {
		return errmodel.Network("send_failed", "writing message failed", nil, err)
	}
	return nil
}

// Close tears down the session; idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	return nil
}

// run reads the current connection and redials on failure until Close or
// the reconnect budget runs out.
func (c *Client) run() {
	defer close(c.msgs)
	for {
		err := c.readLoop()
		select {
		case <-c.closeCh:
			return
		default:
		}
		c.log.Warn("gateway session dropped", "err", err)
		if !c.reconnect() {
			c.log.Error("gateway reconnect exhausted", "attempts", reconnectAttempts)
			return
		}
	}
}

func (c *Client) readLoop() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pinger(conn, stopPing)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.log.Warn("dropping malformed frame", "err", err)
			continue
		}
		switch f.Type {
		case "message":
			if f.Message == nil {
				continue
			}
			select {
			case c.msgs <- *f.Message:
			case <-c.closeCh:
				return nil
			}
		case "error":
			c.log.Warn("gateway error frame", "err", f.Error)
		}
	}
}

func (c *Client) pinger(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// reconnect redials with the fixed policy. Returns false when the budget
// is spent or the client was closed.
func (c *Client) reconnect() bool {
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		select {
		case <-c.closeCh:
			return false
		case <-time.After(reconnectDelay):
		}
		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			c.log.Info("gateway session restored", "attempt", attempt)
			return true
		}
		c.log.Warn("gateway redial failed", "attempt", attempt, "err", err)
	}
	return false
}
