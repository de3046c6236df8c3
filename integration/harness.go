package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nightwatch-game/server/app"
	"github.com/nightwatch-game/server/config"
	dbadapter "github.com/nightwatch-game/server/db"
	"github.com/nightwatch-game/server/game/ai"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const AdminKey = "integration-admin-key"

// YardArena is a single guard at the origin looking at the spawn point.
const YardArena = `id: yard
name: Yard
spawn: {x: 0, y: 0, z: 5}
walls:
  - {id: crate, min_x: 8, min_z: 8, max_x: 9, max_z: 9}
enemies:
  - id: g1
    position: {x: 0, y: 0, z: 0}
`

// TestServer wraps a real HTTP server with the whole arena stack wired
// together the same way main does.
type TestServer struct {
	App      *app.App
	Server   *httptest.Server
	URL      string // http://127.0.0.1:<port>
	WSURL    string // ws://127.0.0.1:<port>/ws
	ArenaDir string
}

// NewTestServer starts a server over an in-memory database, the local cache
// and a temporary arena directory seeded with YardArena. The directory is
// watched, so tests may rewrite arena files to trigger reloads.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yard.yaml"), []byte(YardArena), 0o644))

	cfg := &config.Config{
		Server: config.ServerConfig{AdminKey: AdminKey},
		Database: config.DatabaseConfig{
			Mode:       dbadapter.ModeMemory,
			SQLitePath: strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()),
		},
		Cache: config.CacheConfig{SnapshotTTL: 5 * time.Second},
		Game: config.GameConfig{
			TickMs:           10,
			SnapshotInterval: 50 * time.Millisecond,
			ArenaDir:         dir,
			WatchArenas:      true,
			PlayerMaxHealth:  100,
			PlayerRadius:     0.5,
		},
		AI: ai.DefaultConfig(),
		Security: config.SecurityConfig{
			JWTSecret:      "integration-test-secret",
			JWTTTLH:        time.Hour,
			RateLimitRPS:   1000,
			RateLimitBurst: 2000,
		},
	}

	a, err := app.New(cfg, zap.NewNop())
	require.NoError(t, err)

	server := httptest.NewServer(a.Router())
	ts := &TestServer{
		App:      a,
		Server:   server,
		URL:      server.URL,
		WSURL:    "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
		ArenaDir: dir,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the HTTP server and every game system.
func (ts *TestServer) Close() {
	ts.Server.Close()
	_ = ts.App.Close(context.Background())
}

// WriteArena replaces (or adds) an arena file in the watched directory.
func (ts *TestServer) WriteArena(t *testing.T, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(ts.ArenaDir, name), []byte(body), 0o644))
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body any, header map[string]string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends an unauthenticated GET.
func (ts *TestServer) Get(t *testing.T, path string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, nil)
}

// TryGetJSON is Get for polling loops: it reports failure instead of
// failing the test.
func (ts *TestServer) TryGetJSON(path string, target any) bool {
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(target) == nil
}

// Admin sends a request carrying the admin key.
func (ts *TestServer) Admin(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return ts.do(t, method, path, body, map[string]string{"X-Admin-Key": AdminKey})
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// IssueToken mints a token through the admin API.
func (ts *TestServer) IssueToken(t *testing.T, role, subject string) string {
	t.Helper()
	resp := ts.Admin(t, http.MethodPost, "/api/admin/tokens", map[string]string{
		"role":    role,
		"subject": subject,
		"name":    subject,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Token string `json:"token"`
	}
	ReadJSON(t, resp, &out)
	require.NotEmpty(t, out.Token)
	return out.Token
}

// --- WebSocket client ---

// WSClient wraps a gorilla/websocket connection. A background readLoop
// feeds readCh so a timed-out wait never leaves the connection unusable.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	seq    uint64
	readCh chan readResult
}

type readResult struct {
	data []byte
	err  error
}

// ConnectWS dials /ws with the given token.
func (ts *TestServer) ConnectWS(t *testing.T, token string) *WSClient {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(ts.WSURL+"?token="+token, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	require.NoError(t, err, "WS dial failed")
	wc := &WSClient{Conn: conn, t: t, readCh: make(chan readResult, 1024)}
	go wc.readLoop()
	t.Cleanup(wc.Close)
	return wc
}

func (wc *WSClient) readLoop() {
	for {
		_, data, err := wc.Conn.ReadMessage()
		wc.readCh <- readResult{data, err}
		if err != nil {
			return
		}
	}
}

// Send writes one sequenced packet.
func (wc *WSClient) Send(msgType string, payload any) {
	wc.t.Helper()
	seq := atomic.AddUint64(&wc.seq, 1)
	data, err := json.Marshal(map[string]any{"seq": seq, "type": msgType, "payload": payload})
	require.NoError(wc.t, err)
	require.NoError(wc.t, wc.Conn.WriteMessage(websocket.TextMessage, data))
}

// Packet is a received message with its payload left encoded.
type Packet struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v.
func (p Packet) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(p.Payload, v), "payload: %s", string(p.Payload))
}

// RecvType reads packets until one of msgType arrives.
func (wc *WSClient) RecvType(msgType string, timeout time.Duration) Packet {
	wc.t.Helper()
	return wc.RecvMatch(msgType, timeout, func(Packet) bool { return true })
}

// RecvMatch reads packets until one of msgType satisfies ok.
func (wc *WSClient) RecvMatch(msgType string, timeout time.Duration, ok func(Packet) bool) Packet {
	wc.t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case res := <-wc.readCh:
			if res.err != nil {
				wc.t.Fatalf("WS recv failed while waiting for %q: %v", msgType, res.err)
			}
			var pkt Packet
			require.NoError(wc.t, json.Unmarshal(res.data, &pkt))
			if pkt.Type == msgType && ok(pkt) {
				return pkt
			}
		case <-deadline:
			wc.t.Fatalf("timed out waiting for message type %q", msgType)
			return Packet{}
		}
	}
}

// WaitClosed waits for the server to drop the connection.
func (wc *WSClient) WaitClosed(timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case res := <-wc.readCh:
			if res.err != nil {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("connection still open after %s", timeout)
		}
	}
}

func (wc *WSClient) Close() {
	_ = wc.Conn.Close()
}
