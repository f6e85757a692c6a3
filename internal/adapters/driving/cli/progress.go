package cli

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// progressPrinter renders indexing progress. On a terminal the current
// stage is redrawn in place; otherwise each stage change gets its own line.
type progressPrinter struct {
	out       io.Writer
	tty       bool
	lastStage domain.IndexingStage
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &progressPrinter{out: out, tty: tty}
}

func (p *progressPrinter) update(ev domain.IndexingProgress) {
	if p.tty {
		fmt.Fprintf(p.out, "\r\033[K  [%s] %d/%d %s", ev.Stage, ev.Current, ev.Total, ev.Message)
		return
	}
	if ev.Stage != p.lastStage {
		fmt.Fprintf(p.out, "  [%s] %s\n", ev.Stage, ev.Message)
		p.lastStage = ev.Stage
	}
}

// done ends an in-place line.
func (p *progressPrinter) done() {
	if p.tty {
		fmt.Fprintln(p.out)
	}
}
