package transcription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{ token string }

func (s *staticTokens) ValidAccessToken(ctx context.Context) (string, error) {
	return s.token, nil
}

type collector struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *collector) handle(ctx context.Context, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.msgs...)
}

// newFeedServer upgrades each connection and pushes the given payloads
func newFeedServer(t *testing.T, payloads []string, sawAuth chan<- string) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sawAuth != nil {
			sawAuth <- r.Header.Get("Authorization")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for _, payload := range payloads {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
		}
		// hold the socket open until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestListener_DeliversMessages(t *testing.T) {
	sawAuth := make(chan string, 1)
	server := newFeedServer(t, []string{
		`{"serverId": 101, "transcription": "first text"}`,
		`{"serverId": 0, "transcription": "dropped"}`,
		`{"serverId": 102, "transcription": "second text"}`,
	}, sawAuth)

	sink := &collector{}
	listener := NewListener(wsURL(server), &staticTokens{token: "token-123"}, sink.handle)

	require.NoError(t, listener.Start(context.Background()))
	assert.Equal(t, "Bearer token-123", <-sawAuth)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgs := sink.snapshot()
	assert.Equal(t, Message{ServerID: 101, Transcription: "first text"}, msgs[0])
	assert.Equal(t, Message{ServerID: 102, Transcription: "second text"}, msgs[1])

	require.NoError(t, listener.Stop())
}

func TestListener_StartTwiceFails(t *testing.T) {
	server := newFeedServer(t, nil, nil)

	listener := NewListener(wsURL(server), &staticTokens{token: "t"}, func(context.Context, Message) {})
	require.NoError(t, listener.Start(context.Background()))
	defer func() { require.NoError(t, listener.Stop()) }()

	assert.Error(t, listener.Start(context.Background()))
}

func TestListener_StopWithoutStart(t *testing.T) {
	listener := NewListener("ws://unused", &staticTokens{token: "t"}, func(context.Context, Message) {})
	require.NoError(t, listener.Stop())
}

func TestListener_StopIsIdempotent(t *testing.T) {
	server := newFeedServer(t, nil, nil)
	listener := NewListener(wsURL(server), &staticTokens{token: "t"}, func(context.Context, Message) {})

	require.NoError(t, listener.Start(context.Background()))
	require.NoError(t, listener.Stop())
	require.NoError(t, listener.Stop())

	// a stopped listener can start a fresh connection
	require.NoError(t, listener.Start(context.Background()))
	require.NoError(t, listener.Stop())
}
