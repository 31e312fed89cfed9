package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/prism/internal/broadcast"
	"github.com/Iron-Ham/prism/internal/render"
	"github.com/Iron-Ham/prism/internal/util"
)

// halfBlock draws two vertically stacked pixels in one terminal cell: the
// foreground colors the top pixel, the background the bottom one.
const halfBlock = "▀"

// Preview draws frames on a terminal using colored half blocks. Only every
// Nth frame is drawn.
type Preview struct {
	w        io.Writer
	width    int
	height   int
	everyN   uint64
	renderer *lipgloss.Renderer
	redraw   bool
	columns  int

	mu   sync.Mutex
	seen uint64
}

// NewPreview creates a preview for frames of width x height pixels. When w
// is a terminal, each frame redraws over the previous one and lines are
// cut to the terminal width.
func NewPreview(w io.Writer, width, height, everyN int) *Preview {
	p := &Preview{
		w:        w,
		width:    width,
		height:   height,
		everyN:   uint64(max(everyN, 1)),
		renderer: lipgloss.NewRenderer(w),
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.redraw = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			p.columns = cols
		}
	}
	return p
}

// ID returns the consumer id.
func (p *Preview) ID() string { return "preview" }

// Send draws f when it is due.
func (p *Preview) Send(_ context.Context, f broadcast.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen++
	if (p.seen-1)%p.everyN != 0 {
		return nil
	}
	if len(f.Data) < p.width*p.height*3 {
		return fmt.Errorf("preview: frame has %d bytes, want %d", len(f.Data), p.width*p.height*3)
	}

	var sb strings.Builder
	if p.redraw {
		sb.WriteString("\x1b[H")
	}
	sb.WriteString(p.Render(f.Data))
	sb.WriteString("\n")
	_, err := io.WriteString(p.w, sb.String())
	return err
}

// Render returns the frame as lines of half-block cells.
func (p *Preview) Render(frame []byte) string {
	lines := make([]string, 0, (p.height+1)/2)
	for y := 0; y < p.height; y += 2 {
		var line strings.Builder
		for x := range p.width {
			top := render.DecodeRGB(frame, p.width, x, y)
			style := p.renderer.NewStyle().Foreground(hex(top))
			if y+1 < p.height {
				style = style.Background(hex(render.DecodeRGB(frame, p.width, x, y+1)))
			}
			line.WriteString(style.Render(halfBlock))
		}
		lines = append(lines, line.String())
	}
	return util.TruncateLines(strings.Join(lines, "\n"), p.columns)
}

func hex(c render.Color) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}
