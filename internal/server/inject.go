package server

import (
	"bytes"
	"net/http"
	"strings"
)

const (
	liveReloadPath   = "/livereload"
	liveReloadScript = "/livereload.js"
	maxInjectSize    = 512 * 1024
)

var scriptTag = []byte(`<script async src="` + liveReloadScript + `"></script>`)

// injectLiveReload adds the livereload client to HTML pages served by next.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if !(p == "" || strings.HasSuffix(p, "/") || strings.HasSuffix(p, ".html")) {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// injector buffers an HTML response up to maxInjectSize so the script can be
// placed before </body>. Larger or non-HTML bodies pass through unchanged.
type injector struct {
	http.ResponseWriter
	status      int
	buf         []byte
	started     bool
	passthrough bool
	wroteHeader bool
}

func (i *injector) WriteHeader(code int) {
	i.status = code
	if i.passthrough {
		i.flushHeader()
	}
}

func (i *injector) flushHeader() {
	if i.wroteHeader {
		return
	}
	i.wroteHeader = true
	i.ResponseWriter.WriteHeader(i.status)
}

func (i *injector) Write(data []byte) (int, error) {
	if !i.started {
		i.started = true
		ct := i.Header().Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "text/html") {
			i.passthrough = true
		}
	}
	if i.passthrough {
		i.flushHeader()
		return i.ResponseWriter.Write(data)
	}
	if len(i.buf)+len(data) > maxInjectSize {
		i.passthrough = true
		i.Header().Del("Content-Length")
		i.flushHeader()
		if len(i.buf) > 0 {
			if _, err := i.ResponseWriter.Write(i.buf); err != nil {
				return 0, err
			}
			i.buf = nil
		}
		return i.ResponseWriter.Write(data)
	}
	i.buf = append(i.buf, data...)
	return len(data), nil
}

func (i *injector) finalize() {
	if i.passthrough || len(i.buf) == 0 {
		i.flushHeader()
		return
	}
	body := i.buf
	if i.status == http.StatusOK {
		body = injectScript(body)
	}
	i.Header().Del("Content-Length")
	i.flushHeader()
	_, _ = i.ResponseWriter.Write(body)
}

func injectScript(body []byte) []byte {
	idx := bytes.LastIndex(bytes.ToLower(body), []byte("</body>"))
	if idx < 0 {
		return append(body, scriptTag...)
	}
	out := make([]byte, 0, len(body)+len(scriptTag))
	out = append(out, body[:idx]...)
	out = append(out, scriptTag...)
	return append(out, body[idx:]...)
}
