package ingress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/printrelay/printrelay/internal/logger"
)

const (
	reconnectMin = 1 * time.Second
	reconnectMax = 30 * time.Second
)

// WebsocketClient keeps a persistent connection to the backend and feeds
// every purchase-created event into the intake. It reconnects forever
// with doubling backoff; the backend replays missed purchases on
// reconnect and the intake dedupes them.
type WebsocketClient struct {
	url    string
	intake *Intake

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebsocketClient(url string, intake *Intake) *WebsocketClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebsocketClient{
		url:    url,
		intake: intake,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the connect/read loop.
func (c *WebsocketClient) Start() {
	c.wg.Add(1)
	go c.run()
}

// Stop closes the connection and waits for the loop to exit.
func (c *WebsocketClient) Stop() {
	c.cancel()
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *WebsocketClient) run() {
	defer c.wg.Done()
	log := logger.WithComponent("ingress")

	backoff := reconnectMin
	for {
		if c.ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.url, nil)
		if err != nil {
			log.Error().Err(err).Str("url", c.url).Dur("retry_in", backoff).Msg("Backend connection failed")
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}

		log.Info().Str("url", c.url).Msg("Connected to backend")
		backoff = reconnectMin

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if c.ctx.Err() == nil {
			log.Warn().Str("url", c.url).Msg("Backend connection lost")
		}
	}
}

func (c *WebsocketClient) readLoop(conn *websocket.Conn) {
	log := logger.WithComponent("ingress")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn().Err(err).Msg("Dropping unparseable backend message")
			continue
		}
		if env.Event != PurchaseCreated {
			log.Debug().Str("event", env.Event).Msg("Ignoring backend event")
			continue
		}

		c.intake.Accept("websocket", env.Data)
	}
}
