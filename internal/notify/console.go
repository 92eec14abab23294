package notify

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))
)

type entry struct {
	group   string
	content Content
}

// Console renders notifications as lines on a terminal. It keeps the set of visible
// notifications so a snapshot can be drawn at any time.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	bar     progress.Model
	visible map[int]entry
}

func NewConsole(out io.Writer) *Console {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 24
	return &Console{out: out, bar: bar, visible: make(map[int]entry)}
}

func (c *Console) Post(id int, group string, content Content) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible[id] = entry{group: group, content: content}
	fmt.Fprintln(c.out, c.render(content))
}

func (c *Console) Update(id int, content Content) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.visible[id]
	if !ok {
		// Updating a dismissed notification brings it back, as on Android
		e = entry{}
	}
	e.content = content
	c.visible[id] = e
	fmt.Fprintln(c.out, c.render(content))
}

func (c *Console) Cancel(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.visible, id)
}

func (c *Console) CancelGroup(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, e := range c.visible {
		if e.group == group {
			delete(c.visible, id)
		}
	}
}

// Visible returns the ids currently shown, sorted.
func (c *Console) Visible() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int, 0, len(c.visible))
	for id := range c.visible {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Snapshot draws every visible notification, one per line, in id order.
func (c *Console) Snapshot() string {
	ids := c.Visible()

	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, id := range ids {
		if e, ok := c.visible[id]; ok {
			b.WriteString(c.render(e.content))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (c *Console) render(content Content) string {
	title := titleStyle.Render(content.Title)
	switch {
	case content.Failed:
		title = errorStyle.Render(content.Title)
	case !content.Ongoing && content.ShowProgress && content.Percent >= 100:
		title = successStyle.Render(content.Title)
	}

	var b strings.Builder
	b.WriteString(title)

	if content.ShowProgress {
		b.WriteString(" ")
		if content.Indeterminate {
			b.WriteString(dimStyle.Render("[working]"))
		} else {
			b.WriteString(c.bar.ViewAs(float64(content.Percent) / 100))
			b.WriteString(fmt.Sprintf(" %3d%%", content.Percent))
		}
	}

	if content.Text != "" {
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(content.Text))
	}

	for _, a := range content.Actions {
		b.WriteString(" ")
		b.WriteString(dimStyle.Render("[" + a.Label + "]"))
	}

	return b.String()
}
