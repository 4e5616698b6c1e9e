package shell

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/adamgarcia4/goLearning/meff/node"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	selfStyle   = cellStyle.Foreground(lipgloss.Color("42"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...)
}

// RenderStatus draws the membership table, the held items and the backups.
func RenderStatus(st node.Status) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s @ %s", st.Name, st.Addr)))
	b.WriteString("\n")

	members := newTable("NAME", "ADDRESS")
	selfRow := -1
	for i, m := range st.Members {
		members.Row(m.Name, m.Addr)
		if m.Addr == st.Addr {
			selfRow = i
		}
	}
	members.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case row == selfRow:
			return selfStyle
		}
		return cellStyle
	})
	b.WriteString(members.Render())
	b.WriteString("\n")

	holders := invert(st.Redundancy)
	backups := invert(st.Backups)
	if len(st.Items) == 0 {
		b.WriteString(dimStyle.Render("no items held"))
	} else {
		items := newTable("ITEM", "SIZE", "COPY AT", "BACKUP OF").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		for _, it := range st.Items {
			items.Row(it.Key, strconv.Itoa(it.Size), holders[it.Key], backups[it.Key])
		}
		b.WriteString(items.Render())
	}

	if st.Playing != "" {
		b.WriteString("\n")
		b.WriteString("playing: " + st.Playing)
	}
	if st.Pending > 0 {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d queries waiting for an answer", st.Pending)))
	}
	return b.String()
}

// invert turns address -> keys into key -> address.
func invert(byAddr map[string][]string) map[string]string {
	out := make(map[string]string)
	for addr, keys := range byAddr {
		for _, k := range keys {
			out[k] = addr
		}
	}
	return out
}

// RenderRemoteFiles draws the answer of one member to a status request.
func RenderRemoteFiles(peerName string, names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	if len(sorted) == 0 {
		return titleStyle.Render(peerName) + " " + dimStyle.Render("holds nothing")
	}
	t := newTable(peerName).StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		return cellStyle
	})
	for _, n := range sorted {
		t.Row(n)
	}
	return t.Render()
}

// Printer writes remote status answers to out as they arrive.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) RemoteFiles(peerName string, names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, RenderRemoteFiles(peerName, names))
}
