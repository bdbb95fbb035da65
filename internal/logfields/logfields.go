package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyMode       = "mode"
	KeyStage      = "stage"
	KeyUnit       = "unit"
	KeyPath       = "path"
	KeyEntry      = "entry"
	KeyBytes      = "bytes"
	KeyRevision   = "revision"
	KeyDurationMS = "duration_ms"
	KeyCategory   = "category"
	KeyAddr       = "addr"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Mode(m string) slog.Attr         { return slog.String(KeyMode, m) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Unit(name string) slog.Attr      { return slog.String(KeyUnit, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Entry(p string) slog.Attr        { return slog.String(KeyEntry, p) }
func Bytes(n int) slog.Attr           { return slog.Int(KeyBytes, n) }
func Revision(r string) slog.Attr     { return slog.String(KeyRevision, r) }
func Category(c string) slog.Attr     { return slog.String(KeyCategory, c) }
func Addr(a string) slog.Attr         { return slog.String(KeyAddr, a) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

// Duration reports d in milliseconds under the duration_ms key.
func Duration(d time.Duration) slog.Attr {
	return DurationMS(float64(d.Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
