package cmd

import (
	"fmt"
	"io"
)

// DryRunPrinter formats --dry-run output for commands that would change
// the config file or the keyring.
type DryRunPrinter struct {
	w io.Writer
}

func NewDryRunPrinter(w io.Writer) *DryRunPrinter {
	return &DryRunPrinter{w: w}
}

// Header prints e.g. "[DRY-RUN] Would remove token backup".
func (p *DryRunPrinter) Header(action, kind, id string) {
	_, _ = fmt.Fprintf(p.w, "[DRY-RUN] Would %s %s %s\n", action, kind, id)
}

func (p *DryRunPrinter) Field(name, value string) {
	_, _ = fmt.Fprintf(p.w, "  %s: %s\n", name, value)
}

// Change prints a field that would move from oldVal to newVal.
func (p *DryRunPrinter) Change(name, oldVal, newVal string) {
	switch {
	case oldVal == newVal:
		_, _ = fmt.Fprintf(p.w, "  %s: (unchanged)\n", name)
	case oldVal == "":
		_, _ = fmt.Fprintf(p.w, "  %s: (empty) -> %q\n", name, newVal)
	case newVal == "":
		_, _ = fmt.Fprintf(p.w, "  %s: %q -> (empty)\n", name, oldVal)
	default:
		_, _ = fmt.Fprintf(p.w, "  %s: %q -> %q\n", name, oldVal, newVal)
	}
}

func (p *DryRunPrinter) Footer() {
	_, _ = fmt.Fprintf(p.w, "\n[DRY-RUN] No changes made.\n")
}
