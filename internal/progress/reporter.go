package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides feedback during long downloads.
type Reporter interface {
	Start(label string, totalBytes int64)
	Add(n int64)
	Finish()
}

// NewReporter returns a TerminalReporter in an interactive terminal, or a
// CIReporter when the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a byte progress bar. A total of -1 renders a
// spinner for responses without a Content-Length.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(label string, totalBytes int64) {
	r.bar = progressbar.NewOptions64(totalBytes,
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Add(n int64) {
	if r.bar != nil {
		_ = r.bar.Add64(n)
	}
}

func (r *TerminalReporter) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	label string
	total int64
	done  int64
}

func (r *CIReporter) Start(label string, totalBytes int64) {
	r.label = label
	r.total = totalBytes
	fmt.Fprintf(os.Stderr, "%s: starting download\n", label)
}

func (r *CIReporter) Add(n int64) {
	r.done += n
}

func (r *CIReporter) Finish() {
	fmt.Fprintf(os.Stderr, "%s: %d bytes downloaded\n", r.label, r.done)
}
