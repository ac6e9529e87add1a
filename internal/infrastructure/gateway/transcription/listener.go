// Package transcription receives finished transcriptions pushed by the
// record service over a websocket.
package transcription

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/application/port/output"
)

// Message is one transcription result pushed by the service
type Message struct {
	ServerID      int64  `json:"serverId"`
	Transcription string `json:"transcription"`
}

// Handler receives each pushed message on the listener's read goroutine
type Handler func(ctx context.Context, msg Message)

// Listener keeps one websocket open to the transcription feed and hands every
// message to the handler. Start and Stop bracket one connection; the caller
// decides whether to reconnect.
type Listener struct {
	url     string
	tokens  output.TokenProvider
	handler Handler

	mu     sync.Mutex
	conn   *websocket.Conn
	done   chan struct{}
	cancel context.CancelFunc
}

func NewListener(url string, tokens output.TokenProvider, handler Handler) *Listener {
	return &Listener{url: url, tokens: tokens, handler: handler}
}

// Start dials the feed and begins delivering messages. Messages arrive on a
// dedicated goroutine until Stop is called or the peer closes the socket.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return fmt.Errorf("transcription listener already started")
	}

	token, err := l.tokens.ValidAccessToken(ctx)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := *websocket.DefaultDialer
	dialer.EnableCompression = true
	conn, _, err := dialer.DialContext(ctx, l.url, header)
	if err != nil {
		return fmt.Errorf("dial transcription feed %s: %w", l.url, err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.conn = conn
	l.cancel = cancel
	l.done = done
	go l.readLoop(readCtx, conn, done)

	app.GetLogger().Info("transcription feed connected: %s", l.url)
	return nil
}

// Stop closes the socket and waits for the read goroutine to exit
func (l *Listener) Stop() error {
	l.mu.Lock()
	conn := l.conn
	done := l.done
	cancel := l.cancel
	l.conn = nil
	l.done = nil
	l.cancel = nil
	l.mu.Unlock()

	if conn == nil {
		return nil
	}

	cancel()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
	err := conn.Close()
	<-done
	return err
}

func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				app.GetLogger().Warn("transcription feed closed: %v", err)
			}
			return
		}
		if msg.ServerID == 0 {
			app.GetLogger().Debug("ignoring transcription message without server id")
			continue
		}
		l.handler(ctx, msg)
	}
}
