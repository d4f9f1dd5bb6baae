package display

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	normalFormat   = color.New(color.FgWhite).SprintFunc()
	warningFormat  = color.New(color.FgHiYellow).SprintFunc()
	criticalFormat = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

const separator = "--------------------"

// Console renders status lines to a terminal.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Render(lines []Line) error {
	var builder strings.Builder
	builder.WriteString(separator + "\n")
	for _, line := range lines {
		builder.WriteString(format(line) + "\n")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprint(c.out, builder.String())
	return err
}

func format(line Line) string {
	switch line.Level {
	case Critical:
		return criticalFormat(line.Text)
	case Warning:
		return warningFormat(line.Text)
	default:
		return normalFormat(line.Text)
	}
}
