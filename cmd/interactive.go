package cmd

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/adamgarcia4/goLearning/meff/logger"
	"github.com/adamgarcia4/goLearning/meff/node"
	"github.com/adamgarcia4/goLearning/meff/shell"
)

var (
	interactiveNodes    int
	interactiveBasePort int
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start interactive node manager",
	Long: `Start an interactive terminal UI running a local meff network in this process.

Keyboard shortcuts:
  C - Create a new node (it joins through the first node)
  D - Crash a node (shows selection menu; peers detect the loss)
  L - Make the selected node leave gracefully
  Tab - Select the next node
  : - Type a shell command for the selected node (help lists them)
  Q - Quit

Examples:
  meff interactive
  meff interactive --nodes 3 --base-port 7000`,
	Run: runInteractive,
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
	interactiveCmd.Flags().IntVarP(&interactiveNodes, "nodes", "n", 0, "Nodes to create at startup")
	interactiveCmd.Flags().IntVar(&interactiveBasePort, "base-port", 7000, "First port handed out to nodes")
}

// syncBuffer collects shell output written from tea commands.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := strings.Split(strings.TrimRight(b.buf.String(), "\n"), "\n")
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

type model struct {
	manager      *node.Manager
	nodes        []*node.Node
	current      int // node the shell talks to
	deleteMode   bool
	selected     int
	commandMode  bool
	input        string
	output       *syncBuffer
	err          error
	logBuffer    *logger.LogBuffer
	logScroll    int // for scrolling logs
	width        int
	height       int
	numericInput string // Buffer for multi-digit numeric input in delete mode
}

func initialModel() model {
	// Initialize logger for interactive mode (no stdout, only log buffer)
	logBuffer := logger.GetGlobalLogBuffer()
	logger.Init("", false)
	logger.AddOutput(logger.NewLogBufferWriter(logBuffer))

	output := &syncBuffer{}
	manager := node.NewManager(interactiveBasePort)
	manager.Options = []node.Option{node.WithDisplay(shell.NewPrinter(output))}

	m := model{
		manager:   manager,
		logBuffer: logBuffer,
		output:    output,
	}
	for i := 0; i < interactiveNodes; i++ {
		if _, err := manager.CreateNode(); err != nil {
			m.err = err
			break
		}
	}
	m.nodes = manager.GetNodes()
	return m
}

func (m model) Init() tea.Cmd {
	// Refresh nodes list periodically
	return tea.Batch(tick(), refreshNodes(m.manager))
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

type tickMsg struct{}

func refreshNodes(manager *node.Manager) tea.Cmd {
	return func() tea.Msg {
		return nodesUpdatedMsg{nodes: manager.GetNodes()}
	}
}

type nodesUpdatedMsg struct {
	nodes []*node.Node
}

type shutdownCompleteMsg struct {
	err error
}

type commandDoneMsg struct{}

// shutdownNodes stops all nodes and sends a message when complete
func shutdownNodes(manager *node.Manager) tea.Cmd {
	return func() tea.Msg {
		err := manager.StopAll()
		return shutdownCompleteMsg{err: err}
	}
}

// runCommand executes a shell line against n off the UI goroutine.
func runCommand(n *node.Node, out *syncBuffer, line string) tea.Cmd {
	return func() tea.Msg {
		fmt.Fprintf(out, "%s> %s\n", n.Name(), line)
		_ = shell.New(n, out).RunLine(context.Background(), line)
		return commandDoneMsg{}
	}
}

func leaveNode(manager *node.Manager, index int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := manager.LeaveNode(ctx, index); err != nil {
			logger.Errorf("leave: %v", err)
		}
		return nodesUpdatedMsg{nodes: manager.GetNodes()}
	}
}

func (m model) currentNode() *node.Node {
	if m.current < 0 || m.current >= len(m.nodes) {
		return nil
	}
	return m.nodes[m.current]
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, shutdownNodes(m.manager)
		}
		if m.commandMode {
			return m.handleCommandMode(msg)
		}
		if m.deleteMode {
			return m.handleDeleteMode(msg)
		}

		switch msg.String() {
		case "q", "Q":
			// Stop all nodes gracefully and wait for completion
			return m, shutdownNodes(m.manager)

		case "c", "C":
			if _, err := m.manager.CreateNode(); err != nil {
				m.err = err
			} else {
				m.err = nil
				m.nodes = m.manager.GetNodes()
			}
			return m, nil

		case "d", "D":
			if len(m.nodes) == 0 {
				m.err = fmt.Errorf("no nodes to crash")
				return m, nil
			}
			m.deleteMode = true
			m.selected = 0
			m.numericInput = ""
			return m, nil

		case "l", "L":
			if m.currentNode() == nil {
				m.err = fmt.Errorf("no node selected")
				return m, nil
			}
			index := m.current
			m.current = 0
			return m, leaveNode(m.manager, index)

		case "tab":
			if len(m.nodes) > 0 {
				m.current = (m.current + 1) % len(m.nodes)
			}
			return m, nil

		case ":":
			if m.currentNode() == nil {
				m.err = fmt.Errorf("create a node first")
				return m, nil
			}
			m.commandMode = true
			m.input = ""
			return m, nil

		case "up", "k":
			// Scroll logs up (show older logs)
			maxScroll := m.logBuffer.Total() - 10
			if maxScroll < 0 {
				maxScroll = 0
			}
			if m.logScroll < maxScroll {
				m.logScroll++
			}
			return m, nil

		case "down", "j":
			if m.logScroll > 0 {
				m.logScroll--
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(tick(), refreshNodes(m.manager))

	case nodesUpdatedMsg:
		m.nodes = msg.nodes
		if m.current >= len(m.nodes) {
			m.current = 0
		}
		return m, nil

	case commandDoneMsg:
		return m, refreshNodes(m.manager)

	case shutdownCompleteMsg:
		if msg.err != nil {
			logger.Printf("Error stopping nodes during shutdown: %v", msg.err)
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m model) handleCommandMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.commandMode = false
		m.input = ""
		return m, nil
	case tea.KeyEnter:
		line := strings.TrimSpace(m.input)
		m.commandMode = false
		m.input = ""
		n := m.currentNode()
		if line == "" || n == nil {
			return m, nil
		}
		if fields := strings.Fields(line); fields[0] == "exit" || fields[0] == "quit" {
			index := m.current
			m.current = 0
			return m, leaveNode(m.manager, index)
		}
		return m, runCommand(n, m.output, line)
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
		return m, nil
	case tea.KeySpace:
		m.input += " "
		return m, nil
	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}
	return m, nil
}

func (m model) handleDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.deleteMode = false
		m.selected = 0
		m.err = nil
		m.numericInput = ""
		return m, nil

	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case "down", "j":
		if m.selected < len(m.nodes)-1 {
			m.selected++
		}
		return m, nil

	case "enter", " ":
		index := m.selected
		if m.numericInput != "" {
			typed := m.numericInput
			m.numericInput = ""
			num, err := strconv.Atoi(typed)
			if err != nil || num < 1 || num > len(m.nodes) {
				m.err = fmt.Errorf("node %s does not exist (max: %d)", typed, len(m.nodes))
				return m, nil
			}
			index = num - 1
		}
		if err := m.manager.DeleteNode(index); err != nil {
			m.err = err
		} else {
			m.nodes = m.manager.GetNodes()
			m.deleteMode = false
			m.selected = 0
			m.current = 0
			m.err = nil
		}
		return m, nil

	default:
		keyStr := msg.String()
		if len(keyStr) == 1 && keyStr >= "0" && keyStr <= "9" {
			m.numericInput += keyStr
			return m, nil
		}
		m.numericInput = ""
		return m, nil
	}
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Padding(1, 2)
	s.WriteString(titleStyle.Render("meff Network Sandbox"))
	s.WriteString("\n\n")

	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	// Nodes list
	if len(m.nodes) == 0 {
		s.WriteString("No nodes running.\n\n")
	} else {
		s.WriteString("Running Nodes:\n\n")
		for i, n := range m.nodes {
			st := n.Status()
			line := fmt.Sprintf("[%d] %s %s  members: %d  items: %d", i+1, st.Name, st.Addr, len(st.Members), len(st.Items))
			switch {
			case m.deleteMode && i == m.selected:
				s.WriteString(lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("196")).Bold(true).Render("> " + line))
			case !m.deleteMode && i == m.current:
				s.WriteString(lipgloss.NewStyle().PaddingLeft(2).Foreground(lipgloss.Color("42")).Render("* " + line))
			default:
				s.WriteString("    " + line)
			}
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	boxWidth := 100
	if m.width > 0 {
		boxWidth = m.width - 4 // Leave some margin
	}
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(boxWidth)

	// Shell output
	s.WriteString(boxStyle.Height(8).Render("Output:\n" + strings.Join(m.output.lines(8), "\n")))
	s.WriteString("\n")

	// Logs, newest first
	s.WriteString(boxStyle.Height(11).Render("Logs:\n" + strings.Join(m.logLines(10), "\n")))
	s.WriteString("\n\n")

	instructionsStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	switch {
	case m.commandMode:
		s.WriteString(lipgloss.NewStyle().Bold(true).Render(": " + m.input + "█"))
		s.WriteString("\n")
		s.WriteString(instructionsStyle.Render("Enter to run | Esc to cancel"))
	case m.deleteMode:
		helpText := fmt.Sprintf("CRASH MODE: Use ↑/↓/j/k or type node number (1-%d), Enter to confirm, Esc to cancel", len(m.nodes))
		if m.numericInput != "" {
			helpText = fmt.Sprintf("CRASH MODE: Type node number (current: %s) or Enter to confirm, Esc to cancel", m.numericInput)
		}
		s.WriteString(instructionsStyle.Render(helpText))
	default:
		s.WriteString(instructionsStyle.Render("C create | D crash | L leave | Tab select | : command | ↑/↓/j/k scroll logs | Q quit"))
	}

	return s.String()
}

// logLines returns count log lines, newest first, shifted back by the scroll offset.
func (m model) logLines(count int) []string {
	entries := m.logBuffer.GetAll()
	if len(entries) == 0 {
		return []string{"     | (no logs yet)"}
	}

	end := len(entries) - m.logScroll
	if end < 0 {
		end = 0
	}
	start := end - count
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, count)
	for i := end - 1; i >= start; i-- {
		lines = append(lines, fmt.Sprintf("%4d | %s", len(entries)-1-i, logger.FormatLogEntry(entries[i])))
	}
	return lines
}

func runInteractive(cmd *cobra.Command, args []string) {
	p := tea.NewProgram(initialModel())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running interactive mode: %v\n", err)
	}
}
