package display

import (
	"fmt"
	"io"

	"github.com/backmassage/hz432/internal/term"
)

// PrintBanner prints the ASCII art banner; uses Magenta if colors are enabled.
func PrintBanner(w io.Writer, version string) {
	fmt.Fprint(w, term.Paint(term.Magenta, ` _          _  _  _____ ____
| |__  ____| || ||___ /|___ \
| '_ \|_  /| || |_ |_ \  __) |
| | | |/ / |__   _|__) |/ __/
|_| |_/___|   |_||____/|_____|
`))
	fmt.Fprintf(w, "440 Hz -> 432 Hz batch converter %s\n\n", version)
}
