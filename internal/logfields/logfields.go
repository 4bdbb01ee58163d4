package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyFile       = "file"
	KeyOutput     = "output"
	KeyFormat     = "format"
	KeyPath       = "path"
	KeyPattern    = "pattern"
	KeyCount      = "count"
	KeyURL        = "url"
	KeyCategory   = "category"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Output(o string) slog.Attr        { return slog.String(KeyOutput, o) }
func Format(f string) slog.Attr        { return slog.String(KeyFormat, f) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Pattern(p string) slog.Attr       { return slog.String(KeyPattern, p) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Category(c string) slog.Attr      { return slog.String(KeyCategory, c) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
