package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"git.home.luguber.info/inful/pxbuild/internal/build"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

func success(w io.Writer, format string, a ...any) {
	_, _ = green.Fprintf(w, "✓ "+format+"\n", a...)
}

func info(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", a...)
}

func statusColor(status build.Status) *color.Color {
	switch {
	case status.IsSuccess():
		return green
	case status == build.StatusCanceled:
		return yellow
	default:
		return red
	}
}
