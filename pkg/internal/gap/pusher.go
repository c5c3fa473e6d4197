package gap

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"git.solsynth.dev/hypernet/feedsync/pkg/internal/models"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

const (
	pusherReadLimit    = 512 * 1024
	pusherPongWait     = 60 * time.Second
	pusherPingInterval = 54 * time.Second
	pusherWriteWait    = 10 * time.Second
)

// PushHandler receives every decoded push message, in arrival order.
type PushHandler func(msg models.PushMessage) error

// Pusher is the websocket subscription to feed events.
type Pusher struct {
	endpoint string
	token    string
	handler  PushHandler

	mu        sync.Mutex
	conn      *websocket.Conn
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewPusher(endpoint, token string, handler PushHandler) *Pusher {
	return &Pusher{
		endpoint: endpoint,
		token:    token,
		handler:  handler,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Connect dials the push endpoint and starts the pumps.
func (v *Pusher) Connect(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.conn != nil {
		return fmt.Errorf("pusher is already connected")
	}

	headers := make(http.Header)
	if len(v.token) > 0 {
		headers.Set("Authorization", "Bearer "+v.token)
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 30 * time.Second
	conn, resp, err := dialer.DialContext(ctx, v.endpoint, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect to pusher (status: %d): %v", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect to pusher: %v", err)
	}
	v.conn = conn

	go v.readPump(conn)
	go v.pingPump(conn)

	log.Info().Str("endpoint", v.endpoint).Msg("Connected to pusher.")
	return nil
}

// Done is closed once the read pump stopped.
func (v *Pusher) Done() <-chan struct{} {
	return v.done
}

func (v *Pusher) Close() error {
	v.closeOnce.Do(func() {
		close(v.stop)

		v.mu.Lock()
		conn := v.conn
		v.mu.Unlock()
		if conn == nil {
			close(v.done)
			return
		}

		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(pusherWriteWait),
		)
		_ = conn.Close()
		<-v.done
		log.Info().Msg("Disconnected from pusher.")
	})
	return nil
}

func (v *Pusher) readPump(conn *websocket.Conn) {
	defer close(v.done)
	defer conn.Close()

	conn.SetReadLimit(pusherReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pusherPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pusherPongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-v.stop:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Error().Err(err).Msg("An error occurred when reading from pusher...")
				}
			}
			return
		}

		var msg models.PushMessage
		if err := jsoniter.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Msg("Dropped undecodable push message...")
			continue
		}
		if err := v.handler(msg); err != nil {
			log.Debug().Err(err).Str("type", msg.Type).Msg("Push message was not accepted...")
		}
	}
}

func (v *Pusher) pingPump(conn *websocket.Conn) {
	ticker := time.NewTicker(pusherPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-v.stop:
			return
		case <-v.done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pusherWriteWait)); err != nil {
				log.Error().Err(err).Msg("An error occurred when pinging pusher...")
				return
			}
		}
	}
}
