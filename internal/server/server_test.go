package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesmith/internal/build"
	"git.home.luguber.info/inful/sitesmith/internal/config"
)

type fakeBuilder struct {
	out   string
	calls atomic.Int32
}

func (f *fakeBuilder) Run(ctx context.Context) (*build.Report, error) {
	n := f.calls.Add(1)
	if err := os.MkdirAll(f.out, 0o750); err != nil {
		return nil, err
	}
	page := fmt.Sprintf("<html><body><p>build %d</p></body></html>", n)
	if err := os.WriteFile(filepath.Join(f.out, "index.html"), []byte(page), 0o600); err != nil {
		return nil, err
	}
	return &build.Report{BuildID: fmt.Sprintf("b%d", n)}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	src := t.TempDir()
	cfg := config.Default()
	cfg.Dir.Input = src
	cfg.Dir.Output = filepath.Join(src, "_site")
	cfg.Watch.Debounce = "50ms"
	return cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestInjectScript(t *testing.T) {
	got := string(injectScript([]byte("<html><BODY>x</BODY></html>")))
	assert.Equal(t, `<html><BODY>x<script async src="/livereload.js"></script></BODY></html>`, got)

	got = string(injectScript([]byte("<p>fragment</p>")))
	assert.Equal(t, `<p>fragment</p><script async src="/livereload.js"></script>`, got)
}

func TestHandlerServesOutputWithLiveReload(t *testing.T) {
	cfg := testConfig(t)
	out := cfg.OutputDir()
	writeFile(t, filepath.Join(out, "index.html"), "<html><body>home</body></html>")
	writeFile(t, filepath.Join(out, "about", "index.html"), "<html><body>about</body></html>")
	writeFile(t, filepath.Join(out, "css", "main.css"), "body{color:red}")

	reg := prom.NewRegistry()
	reg.MustRegister(prom.NewCounter(prom.CounterOpts{Name: "probe_total", Help: "probe"}))
	h := New(cfg, &fakeBuilder{out: out}).WithGatherer(reg).Handler()

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `home<script async src="/livereload.js"></script></body>`)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = get(t, h, "/about/")
	assert.Contains(t, rec.Body.String(), "/livereload.js")

	rec = get(t, h, "/css/main.css")
	assert.Equal(t, "body{color:red}", rec.Body.String())

	rec = get(t, h, "/livereload.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "new EventSource('/livereload')")

	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "probe_total")

	rec = get(t, h, "/missing.html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "livereload")
}

func TestHandlerWithoutLiveReload(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.LiveReload = false
	writeFile(t, filepath.Join(cfg.OutputDir(), "index.html"), "<html><body>home</body></html>")

	h := New(cfg, &fakeBuilder{}).Handler()

	rec := get(t, h, "/")
	assert.Equal(t, "<html><body>home</body></html>", rec.Body.String())
	assert.Equal(t, http.StatusNotFound, get(t, h, "/livereload.js").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)
}

func TestInjectorPassesLargePagesThrough(t *testing.T) {
	big := "<html><body>" + strings.Repeat("x", maxInjectSize) + "</body></html>"
	h := injectLiveReload(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, big[:100])
		_, _ = io.WriteString(w, big[100:])
	}))
	rec := get(t, h, "/page.html")
	assert.Equal(t, big, rec.Body.String())
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Shutdown()

	resp, err := http.Get(srv.URL) //nolint:noctx // test client
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)
	hub.Broadcast("b1")
	hub.Broadcast("b1")
	hub.Broadcast("b2")

	var events []string
	for len(events) < 2 {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimSpace(line))
		}
	}
	assert.Equal(t, []string{`data: {"build":"b1"}`, `data: {"build":"b2"}`}, events)

	hub.Shutdown()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestIgnoreEvent(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/site/index.md", false},
		{"/site/styles/main.scss", false},
		{"/site/.DS_Store", true},
		{"/site/.index.md.swp", true},
		{"/site/index.md~", true},
		{"/site/index.md.swx", true},
		{"/site/#index.md#", true},
		{"/site/Thumbs.db", true},
		{"/site/node_modules/pkg/index.js", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ignoreEvent(tt.path), tt.path)
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	var fired atomic.Int32
	d := newDebouncer(30*time.Millisecond, func() { fired.Add(1) })
	for range 5 {
		d.trigger()
	}
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestFingerprintTracksSourceChanges(t *testing.T) {
	cfg := testConfig(t)
	src := cfg.InputDir()
	writeFile(t, filepath.Join(src, "index.md"), "# hi")

	w, err := newWatcher(src, []string{cfg.OutputDir()}, nil)
	require.NoError(t, err)
	defer func() { _ = w.fs.Close() }()

	before := w.fingerprint()
	writeFile(t, filepath.Join(cfg.OutputDir(), "index.html"), "<p>out</p>")
	writeFile(t, filepath.Join(src, ".cache"), "x")
	assert.Equal(t, before, w.fingerprint(), "output and hidden files are not sources")

	writeFile(t, filepath.Join(src, "about.md"), "# about")
	assert.NotEqual(t, before, w.fingerprint())
}

func TestServeRebuildsOnChange(t *testing.T) {
	cfg := testConfig(t)
	src := cfg.InputDir()
	writeFile(t, filepath.Join(src, "index.md"), "# hi")
	b := &fakeBuilder{out: cfg.OutputDir()}
	s := New(cfg, b)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var serveErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		serveErr = s.Serve(ctx, ln)
	}()

	require.Eventually(t, func() bool { return b.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/") //nolint:noctx // test client
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(resp.Body)
		body = string(raw)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)
	assert.Contains(t, body, "build 1")
	assert.Contains(t, body, "/livereload.js")

	writeFile(t, filepath.Join(src, "about.md"), "# about")
	require.Eventually(t, func() bool { return b.calls.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		r := s.LastReport()
		return r != nil && r.BuildID != "b1"
	}, time.Second, 10*time.Millisecond)

	// Builds write into the output dir, which must not retrigger them.
	time.Sleep(300 * time.Millisecond)
	settled := b.calls.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, settled, b.calls.Load())

	cancel()
	wg.Wait()
	assert.NoError(t, serveErr)
}
