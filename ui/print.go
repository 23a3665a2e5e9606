package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/CK6170/tenmadc-go/modern"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[91m"
	ansiGreen  = "\033[92m"
	ansiYellow = "\033[93m"
	ansiDebug  = "\033[33m"
	ansiCyan   = "\033[96m"
)

// Out is where the printers write. Colour is used only when it is a terminal.
var Out io.Writer = os.Stdout

func colourEnabled() bool {
	f, ok := Out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func colourPrintf(colour, format string, a ...any) {
	if colourEnabled() {
		fmt.Fprint(Out, colour)
		fmt.Fprintf(Out, format, a...)
		fmt.Fprint(Out, ansiReset)
		return
	}
	fmt.Fprintf(Out, format, a...)
}

func DebugPrintf(enabled bool, format string, a ...any) {
	if enabled {
		colourPrintf(ansiDebug, "[DEBUG] "+format, a...)
	}
}

func GreenPrintf(format string, a ...any) { colourPrintf(ansiGreen, format, a...) }

func WarningPrintf(format string, a ...any) { colourPrintf(ansiYellow, format, a...) }

func ErrorPrintf(format string, a ...any) { colourPrintf(ansiRed, format, a...) }

func InfoPrintf(format string, a ...any) { colourPrintf(ansiCyan, format, a...) }

func ClearScreen() {
	if colourEnabled() {
		fmt.Fprint(Out, "\033[2J\033[1;1H")
	}
}

// DebugObserver prints every exchange as raw bytes.
type DebugObserver struct{}

func (DebugObserver) Exchange(ev modern.ExchangeEvent) {
	DebugPrintf(true, ">> %q\n", ev.Sent)
	if len(ev.Received) > 0 {
		DebugPrintf(true, "<< %q (% x)\n", ev.Received, ev.Received)
	}
	if ev.Err != nil {
		DebugPrintf(true, "!! %s: %v (%s)\n", ev.Op, ev.Err, ev.Elapsed)
	}
}
