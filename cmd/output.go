package cmd

import (
	"encoding/json"
	"io"
	"os"

	"golang.org/x/term"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// palette holds the escape codes for one writer; all empty when the writer
// is not a terminal.
type palette struct {
	reset, red, green, yellow, cyan, gray, bold string
}

func paletteFor(w io.Writer) palette {
	if !useColor(w) {
		return palette{}
	}
	return palette{
		reset:  colorReset,
		red:    colorRed,
		green:  colorGreen,
		yellow: colorYellow,
		cyan:   colorCyan,
		gray:   colorGray,
		bold:   colorBold,
	}
}

func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
