package gmo

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fxassist/internal/model"
)

var errNoConn = errors.New("websocket not connected")

const (
	defaultPublicWSURL = "wss://forex-api.coin.z.com/ws/public"

	// The broker pings once per minute. Three consecutive pings with no
	// bytes on the socket means the connection is dead.
	serverPingInterval = time.Minute
	deadAfter          = 3 * serverPingInterval

	reconnectBase = time.Second
	reconnectMax  = 60 * time.Second
)

// PublicStreamConfig configures the public market-data stream.
type PublicStreamConfig struct {
	URL     string // default: broker public WS endpoint
	Symbols []model.Symbol
}

// PublicStream maintains the public WebSocket: ticker subscriptions for the
// configured pairs, heartbeat supervision, and reconnect with full
// re-subscription. Decoded quotes land in the QuoteQueue; the stream holds
// no references to its consumers.
type PublicStream struct {
	cfg     PublicStreamConfig
	limiter *Limiter
	quotes  *QuoteQueue

	mu      sync.Mutex
	conn    *websocket.Conn
	subs    map[model.Symbol]struct{}
	lastRx  time.Time // any bytes received
	writeMu sync.Mutex

	// OnReconnect is called on every reconnection attempt (optional).
	OnReconnect func()
}

// NewPublicStream creates the stream. Quotes are published into quotes.
func NewPublicStream(cfg PublicStreamConfig, limiter *Limiter, quotes *QuoteQueue) *PublicStream {
	if cfg.URL == "" {
		cfg.URL = defaultPublicWSURL
	}
	subs := make(map[model.Symbol]struct{}, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		subs[s] = struct{}{}
	}
	return &PublicStream{
		cfg:     cfg,
		limiter: limiter,
		quotes:  quotes,
		subs:    subs,
	}
}

// Run connects and keeps the stream alive until ctx is cancelled.
// Reconnects use exponential backoff from 1s capped at 60s, with full
// re-subscription on each new connection.
func (p *PublicStream) Run(ctx context.Context) {
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
		log.Printf("[ws-public] connection lost: %v (reconnecting in %s)", err, backoff)
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

// connect dials and re-issues every subscription through the limiter.
func (p *PublicStream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.cfg.URL, nil)
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
	symbols := make([]model.Symbol, 0, len(p.subs))
	for s := range p.subs {
		symbols = append(symbols, s)
	}
	p.mu.Unlock()

	for _, s := range symbols {
		if err := p.sendCommand(ctx, "subscribe", s); err != nil {
			return err
		}
	}
	log.Printf("[ws-public] connected, %d ticker subscriptions", len(symbols))
	return nil
}

// Subscribe adds a pair at runtime.
func (p *PublicStream) Subscribe(ctx context.Context, s model.Symbol) error {
	p.mu.Lock()
	p.subs[s] = struct{}{}
	connected := p.conn != nil
	p.mu.Unlock()
	if !connected {
		return nil // picked up on next connect
	}
	return p.sendCommand(ctx, "subscribe", s)
}

// Unsubscribe removes a pair at runtime. After it returns no further quotes
// for the pair are published.
func (p *PublicStream) Unsubscribe(ctx context.Context, s model.Symbol) error {
	p.mu.Lock()
	delete(p.subs, s)
	connected := p.conn != nil
	p.mu.Unlock()
	if !connected {
		return nil
	}
	return p.sendCommand(ctx, "unsubscribe", s)
}

// sendCommand writes one subscribe/unsubscribe frame, rate-limited to the
// broker's 1/sec/IP ceiling.
func (p *PublicStream) sendCommand(ctx context.Context, command string, s model.Symbol) error {
	if err := p.limiter.Wait(ctx, ClassWSSubscribe); err != nil {
		return err
	}
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return transportErr(errNoConn)
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return conn.WriteJSON(WSCommand{Command: command, Channel: ChannelTicker, Symbol: string(s)})
}

// readLoop decodes ticker frames until the socket errors or the heartbeat
// watchdog declares it dead.
func (p *PublicStream) readLoop(ctx context.Context) error {
	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()
	go p.watchdog(watchCtx)

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

		var tick WSTicker
		if err := json.Unmarshal(raw, &tick); err != nil || tick.Symbol == "" {
			continue // non-ticker frame (error acks etc.)
		}
		sym, err := model.ParseSymbol(tick.Symbol)
		if err != nil {
			continue
		}
		bid, err1 := strconv.ParseFloat(tick.Bid, 64)
		ask, err2 := strconv.ParseFloat(tick.Ask, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		p.quotes.Publish(model.Quote{
			Symbol:    sym,
			Bid:       bid,
			Ask:       ask,
			Timestamp: tick.Timestamp,
			Status:    model.MarketStatus(tick.Status),
		})
	}
}

// watchdog closes the connection when nothing has been received for three
// server ping intervals.
func (p *PublicStream) watchdog(ctx context.Context) {
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
				log.Printf("[ws-public] no bytes for %s, declaring connection dead", deadAfter)
				conn.Close() // unblocks ReadMessage
				return
			}
		}
	}
}

func (p *PublicStream) touch() {
	p.mu.Lock()
	p.lastRx = time.Now()
	p.mu.Unlock()
}

func (p *PublicStream) closeConn() {
	p.mu.Lock()
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
	p.mu.Unlock()
}
