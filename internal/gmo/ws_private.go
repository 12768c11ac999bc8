package gmo

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultPrivateWSBase = "wss://forex-api.coin.z.com/ws/private"

	// Tokens live 60 minutes; renew well before expiry so one failed
	// extension still leaves room for a retry or a fresh token.
	tokenRenewInterval = 50 * time.Minute
)

// PrivateStreamConfig configures the private event stream.
type PrivateStreamConfig struct {
	URLBase  string   // default: broker private WS base, token appended
	Channels []string // private channels to subscribe
}

// PrivateStream maintains the authenticated WebSocket: token acquisition and
// renewal, per-channel subscriptions, and reconnect with a fresh token when
// the current one is rejected. Frames are routed into per-channel
// EventQueues in broker order.
type PrivateStream struct {
	cfg     PrivateStreamConfig
	client  *Client
	limiter *Limiter
	queues  map[string]*EventQueue

	mu      sync.Mutex
	conn    *websocket.Conn
	token   string
	lastRx  time.Time
	writeMu sync.Mutex

	OnReconnect  func()
	OnTokenRenew func()
}

// NewPrivateStream creates the stream with one lossless queue per channel.
func NewPrivateStream(cfg PrivateStreamConfig, client *Client, limiter *Limiter) *PrivateStream {
	if cfg.URLBase == "" {
		cfg.URLBase = defaultPrivateWSBase
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{
			ChannelExecutionEvents,
			ChannelOrderEvents,
			ChannelPositionEvents,
			ChannelPositionSummaryEvents,
		}
	}
	queues := make(map[string]*EventQueue, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		queues[ch] = NewEventQueue()
	}
	return &PrivateStream{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		queues:  queues,
	}
}

// Queue returns the event queue for a channel, or nil if not subscribed.
func (p *PrivateStream) Queue(channel string) *EventQueue { return p.queues[channel] }

// Run keeps the authenticated stream alive until ctx is cancelled, then
// revokes the token. Reconnects mirror the public stream's backoff; a
// rejected token is replaced rather than retried.
func (p *PrivateStream) Run(ctx context.Context) {
	defer p.revoke()

	backoff := reconnectBase
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.connect(ctx)
		if err == nil {
			backoff = reconnectBase
			err = p.readLoop(ctx)
		}
		p.closeConn()

		if ctx.Err() != nil {
			return
		}
		if isTokenRejected(err) {
			p.dropToken()
		}
		log.Printf("[ws-private] connection lost: %v (reconnecting in %s)", err, backoff)
		if p.OnReconnect != nil {
			p.OnReconnect()
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// connect obtains a token if needed, dials, and subscribes every channel.
func (p *PrivateStream) connect(ctx context.Context) error {
	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	if token == "" {
		t, err := p.client.CreateWSToken(ctx)
		if err != nil {
			return err
		}
		token = t
		p.mu.Lock()
		p.token = token
		p.mu.Unlock()
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.cfg.URLBase+"/"+token, nil)
	if err != nil {
		return transportErr(err)
	}

	conn.SetPingHandler(func(appData string) error {
		p.touch()
		p.writeMu.Lock()
		defer p.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	p.mu.Lock()
	p.conn = conn
	p.lastRx = time.Now()
	p.mu.Unlock()

	for _, ch := range p.cfg.Channels {
		if err := p.subscribe(ctx, conn, ch); err != nil {
			return err
		}
	}
	log.Printf("[ws-private] connected, %d channel subscriptions", len(p.cfg.Channels))
	return nil
}

func (p *PrivateStream) subscribe(ctx context.Context, conn *websocket.Conn, channel string) error {
	if err := p.limiter.Wait(ctx, ClassWSSubscribe); err != nil {
		return err
	}
	cmd := WSCommand{Command: "subscribe", Channel: channel}
	if channel == ChannelPositionSummaryEvents {
		cmd.Option = "PERIODIC"
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return conn.WriteJSON(cmd)
}

// readLoop routes frames into their channel queue until the socket errors,
// the token renewal fails terminally, or the watchdog declares it dead.
func (p *PrivateStream) readLoop(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go p.watchdog(loopCtx)
	go p.renewLoop(loopCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.mu.Lock()
		conn := p.conn
		p.mu.Unlock()
		if conn == nil {
			return errNoConn
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		p.touch()

		var head struct {
			Channel string `json:"channel"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}
		if head.Error != "" {
			log.Printf("[ws-private] broker error frame: %s", head.Error)
			if strings.Contains(head.Error, "ERR-5012") {
				return newCodeError("ERR-5012", head.Error, 0)
			}
			continue
		}
		q, ok := p.queues[head.Channel]
		if !ok {
			continue
		}
		if err := q.Publish(ctx, WSPrivateEvent{Channel: head.Channel, Raw: raw}); err != nil {
			return err
		}
	}
}

// renewLoop extends the token every 50 minutes. A failed extension forces a
// reconnect, which mints a fresh token.
func (p *PrivateStream) renewLoop(ctx context.Context) {
	ticker := time.NewTicker(tokenRenewInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			token := p.token
			conn := p.conn
			p.mu.Unlock()
			if token == "" {
				continue
			}
			if err := p.client.ExtendWSToken(ctx, token); err != nil {
				log.Printf("[ws-private] token extension failed: %v (forcing reconnect)", err)
				p.dropToken()
				if conn != nil {
					conn.Close()
				}
				return
			}
			if p.OnTokenRenew != nil {
				p.OnTokenRenew()
			}
		}
	}
}

func (p *PrivateStream) watchdog(ctx context.Context) {
	ticker := time.NewTicker(serverPingInterval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			stale := time.Since(p.lastRx) > deadAfter
			conn := p.conn
			p.mu.Unlock()
			if stale && conn != nil {
				log.Printf("[ws-private] no bytes for %s, declaring connection dead", deadAfter)
				conn.Close()
				return
			}
		}
	}
}

// revoke deletes the active token at shutdown so it cannot outlive the
// process. Uses a short independent context; Run's context is already done.
func (p *PrivateStream) revoke() {
	p.mu.Lock()
	token := p.token
	p.token = ""
	p.mu.Unlock()
	if token == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.DeleteWSToken(ctx, token); err != nil {
		log.Printf("[ws-private] token revoke failed: %v", err)
	}
}

func isTokenRejected(err error) bool {
	return IsCategory(err, CatAuth)
}

func (p *PrivateStream) dropToken() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

func (p *PrivateStream) touch() {
	p.mu.Lock()
	p.lastRx = time.Now()
	p.mu.Unlock()
}

func (p *PrivateStream) closeConn() {
	p.mu.Lock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.mu.Unlock()
}
