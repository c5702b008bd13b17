package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/encoding/json"

	"github.com/rickgao/robot-telemetry/internal/config"
	"github.com/rickgao/robot-telemetry/internal/snapshot"
	"github.com/rickgao/robot-telemetry/internal/store"
	"github.com/rickgao/robot-telemetry/internal/stream"
	"github.com/rickgao/robot-telemetry/internal/version"
)

const robotR1 = `{"Robot ID":"R1","Online/Offline":true,"Battery Percentage":80,"CPU Usage":10,"RAM Consumption":512,"Last Updated":"2024-01-01 00:00:00","Location Coordinates":[1.0,2.0]}`

const wantR1 = `[{"robot_id":"R1","online_offline":true,"battery_percentage":80,"cpu_usage":10,"ram_consumption":512,"last_updated":"2024-01-01T00:00:00","location_coordinates":[1.0,2.0]}]`

// newTestServer builds the full handler over a store file holding content.
// A nil content leaves the store file absent.
func newTestServer(t *testing.T, content *string, mutate ...func(*config.Config)) (*Server, string) {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Path = filepath.Join(t.TempDir(), "fake_robot_data.json")
	for _, m := range mutate {
		m(cfg)
	}
	if content != nil {
		if err := os.WriteFile(cfg.Store.Path, []byte(*content), 0644); err != nil {
			t.Fatalf("write store file: %v", err)
		}
	}

	loader := store.NewFileStore(cfg.Store.Path)
	streamCfg := stream.DefaultConfig()
	streamCfg.AllowedOrigins = cfg.CORS.AllowedOrigins
	streams := stream.NewServer(streamCfg, loader, nil, nil)

	srv := NewServer(cfg, snapshot.New(loader, nil), streams, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		streams.Shutdown(ctx)
	})
	return srv, cfg.Store.Path
}

func ptr(s string) *string { return &s }

func do(t *testing.T, h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// assertJSONEqual compares decoded values. Float formatting is not pinned:
// the encoder writes 1.0 as 1, which decodes to the same number.
func assertJSONEqual(t *testing.T, got, want string) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("body %q is not json: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("want %q is not json: %v", want, err)
	}
	if !reflect.DeepEqual(g, w) {
		t.Errorf("body = %s, want %s", got, want)
	}
}

func decodeError(t *testing.T, body string) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("body %q is not an error response: %v", body, err)
	}
	return resp
}

func TestRobots(t *testing.T) {
	srv, _ := newTestServer(t, ptr("["+robotR1+"]"))

	rec := do(t, srv.Handler(), http.MethodGet, "/robots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	assertJSONEqual(t, rec.Body.String(), wantR1)
}

func TestRobotsHead(t *testing.T) {
	srv, _ := newTestServer(t, ptr("["+robotR1+"]"))

	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	resp, err := http.Head(hs.URL + "/robots")
	if err != nil {
		t.Fatalf("HEAD /robots: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 0 {
		t.Errorf("HEAD body = %q, want empty", body)
	}
}

func TestRobotsErrors(t *testing.T) {
	bad := strings.Replace(robotR1, "2024-01-01 00:00:00", "2024-01-01T00:00:00", 1)

	tests := []struct {
		name       string
		content    *string
		dir        bool
		wantStatus int
		wantKind   string
	}{
		{name: "empty store", content: ptr("[]"), wantStatus: http.StatusNotFound, wantKind: store.KindNoData},
		{name: "missing store", content: nil, wantStatus: http.StatusNotFound, wantKind: store.KindStoreNotFound},
		{name: "invalid json", content: ptr(`[{"Robot ID": `), wantStatus: http.StatusBadRequest, wantKind: store.KindStoreMalformed},
		{name: "not an array", content: ptr(`{"Robot ID":"R1"}`), wantStatus: http.StatusBadRequest, wantKind: store.KindStoreMalformed},
		{name: "bad record", content: ptr("[" + robotR1 + "," + bad + "]"), wantStatus: http.StatusBadRequest, wantKind: store.KindRecordMalformed},
		{name: "store is a directory", dir: true, wantStatus: http.StatusInternalServerError, wantKind: store.KindLoadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, path := newTestServer(t, tt.content)
			if tt.dir {
				if err := os.Mkdir(path, 0755); err != nil {
					t.Fatalf("mkdir: %v", err)
				}
			}

			rec := do(t, srv.Handler(), http.MethodGet, "/robots", nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeError(t, rec.Body.String())
			if resp.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp.Kind, tt.wantKind)
			}
			if resp.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestRobotsReflectsStoreChanges(t *testing.T) {
	srv, path := newTestServer(t, ptr("[]"))

	if rec := do(t, srv.Handler(), http.MethodGet, "/robots", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	if err := os.WriteFile(path, []byte("["+robotR1+"]"), 0644); err != nil {
		t.Fatalf("rewrite store: %v", err)
	}

	rec := do(t, srv.Handler(), http.MethodGet, "/robots", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	assertJSONEqual(t, rec.Body.String(), wantR1)
}

func TestNewServerStreamPaths(t *testing.T) {
	for _, p := range []string{"/ws/robots", "/robots/live", "/stream/"} {
		t.Run(p, func(t *testing.T) {
			cfg := config.Default()
			cfg.Stream.Path = p
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			// Registering the routes panics on a conflicting pattern.
			streams := stream.NewServer(stream.DefaultConfig(), store.NewFileStore(cfg.Store.Path), nil, nil)
			NewServer(cfg, snapshot.New(store.NewFileStore(cfg.Store.Path), nil), streams, nil)
		})
	}

	for _, p := range config.ReservedPaths {
		cfg := config.Default()
		cfg.Stream.Path = p
		if err := cfg.Validate(); err == nil {
			t.Errorf("Validate() accepted reserved stream path %q", p)
		}
	}
}

func TestRoot(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		rec := do(t, srv.Handler(), method, "/", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s / status = %d, want %d", method, rec.Code, http.StatusOK)
		}
		if method == http.MethodGet {
			assertJSONEqual(t, rec.Body.String(), `{"status":"ok","service":"robot-telemetry"}`)
		}
	}
}

func TestVersion(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv.Handler(), http.MethodGet, "/version", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var info version.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info != version.Get() {
		t.Errorf("version = %+v, want %+v", info, version.Get())
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv.Handler(), http.MethodGet, "/robots/R1/history", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if resp := decodeError(t, rec.Body.String()); resp.Kind != KindNotFound {
		t.Errorf("kind = %q, want %q", resp.Kind, KindNotFound)
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv.Handler(), http.MethodGet, "/", nil)
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 {
		t.Errorf("generated %s = %q, want a uuid", RequestIDHeader, id)
	}

	rec = do(t, srv.Handler(), http.MethodGet, "/", http.Header{RequestIDHeader: {"abc-123"}})
	if id := rec.Header().Get(RequestIDHeader); id != "abc-123" {
		t.Errorf("%s = %q, want the incoming id", RequestIDHeader, id)
	}
}

func TestCORS(t *testing.T) {
	t.Run("wildcard with credentials reflects origin", func(t *testing.T) {
		srv, _ := newTestServer(t, ptr("["+robotR1+"]"))

		rec := do(t, srv.Handler(), http.MethodGet, "/robots", http.Header{"Origin": {"https://dash.example.com"}})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want the request origin", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		srv, _ := newTestServer(t, nil)

		rec := do(t, srv.Handler(), http.MethodOptions, "/robots", http.Header{
			"Origin":                         {"https://dash.example.com"},
			"Access-Control-Request-Method":  {http.MethodDelete},
			"Access-Control-Request-Headers": {"X-Custom-Header"},
		})
		if rec.Code >= 300 {
			t.Errorf("preflight status = %d, want 2xx", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
			t.Errorf("Access-Control-Allow-Origin = %q, want the request origin", got)
		}
	})

	t.Run("allow list", func(t *testing.T) {
		srv, _ := newTestServer(t, ptr("["+robotR1+"]"), func(c *config.Config) {
			c.CORS.AllowedOrigins = []string{"https://dash.example.com/"}
		})

		rec := do(t, srv.Handler(), http.MethodGet, "/robots", http.Header{"Origin": {"https://dash.example.com"}})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
			t.Errorf("listed origin: Access-Control-Allow-Origin = %q", got)
		}

		rec = do(t, srv.Handler(), http.MethodGet, "/robots", http.Header{"Origin": {"https://evil.example"}})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("unlisted origin: Access-Control-Allow-Origin = %q, want empty", got)
		}
	})
}

func TestStreamThroughMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, ptr("["+robotR1+"]"))

	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + config.DefaultStreamPath
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://dash.example.com"}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	assertJSONEqual(t, string(data), wantR1)
}

func TestServeAndStop(t *testing.T) {
	srv, _ := newTestServer(t, ptr("["+robotR1+"]"))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(context.Background(), ln) }()

	url := "http://" + ln.Addr().String() + "/"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never answered: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNoData, http.StatusNotFound},
		{store.ErrStoreNotFound, http.StatusNotFound},
		{store.ErrStoreMalformed, http.StatusBadRequest},
		{store.ErrRecordMalformed, http.StatusBadRequest},
		{store.ErrLoadFailed, http.StatusInternalServerError},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
