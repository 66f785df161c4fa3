package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/wippyai/jlvalue/convert"
)

var browseCmd = &cobra.Command{
	Use:   "browse [flags] expression",
	Short: "Explore a decoded value interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	dec := convert.NewDecoder(rt)
	eval := func(src string) (*convert.Node, error) {
		v, err := rt.Eval(ctx, src)
		if err != nil {
			return nil, err
		}
		return dec.Decode(ctx, v)
	}
	root, err := eval(args[0])
	if err != nil {
		return err
	}

	m := newBrowseModel(root, args[0], eval, styler(useColor(cmd, os.Stdout)))
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

type row struct {
	node   *convert.Node
	prefix string
	depth  int
}

type browseModel struct {
	err      error
	root     *convert.Node
	eval     func(string) (*convert.Node, error)
	expanded map[*convert.Node]bool
	source   string
	rows     []row
	input    textinput.Model
	cursor   int
	offset   int
	height   int
	editing  bool
	style    styler
}

type evalMsg struct {
	err  error
	root *convert.Node
	src  string
}

func newBrowseModel(root *convert.Node, source string, eval func(string) (*convert.Node, error), s styler) *browseModel {
	ti := textinput.New()
	ti.Prompt = "eval> "
	ti.Width = 60
	m := &browseModel{
		root:     root,
		eval:     eval,
		source:   source,
		input:    ti,
		style:    s,
		height:   20,
		expanded: map[*convert.Node]bool{root: true},
	}
	m.rebuild()
	return m
}

// rebuild flattens the expanded part of the tree into rows.
func (m *browseModel) rebuild() {
	m.rows = m.rows[:0]
	var add func(n *convert.Node, prefix string, depth int)
	add = func(n *convert.Node, prefix string, depth int) {
		m.rows = append(m.rows, row{node: n, prefix: prefix, depth: depth})
		if !m.expanded[n] {
			return
		}
		for i, c := range n.Elems {
			add(c, childName(n, i, m.style), depth+1)
		}
	}
	add(m.root, "", 0)
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	m.scroll()
}

func (m *browseModel) scroll() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.height {
		m.offset = m.cursor - m.height + 1
	}
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - 6; h > 0 {
			m.height = h
			m.scroll()
		}
		return m, nil

	case evalMsg:
		m.err = msg.err
		if msg.err == nil {
			m.root = msg.root
			m.source = msg.src
			m.expanded = map[*convert.Node]bool{msg.root: true}
			m.cursor, m.offset = 0, 0
			m.rebuild()
		}
		return m, nil

	case tea.KeyMsg:
		if m.editing {
			return m.updateInput(msg)
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				m.scroll()
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
				m.scroll()
			}
		case "enter", " ":
			n := m.rows[m.cursor].node
			if len(n.Elems) > 0 {
				m.expanded[n] = !m.expanded[n]
				m.rebuild()
			}
		case "right", "l":
			m.expanded[m.rows[m.cursor].node] = true
			m.rebuild()
		case "left", "h":
			delete(m.expanded, m.rows[m.cursor].node)
			m.rebuild()
		case "e":
			m.editing = true
			m.err = nil
			m.input.SetValue("")
			return m, m.input.Focus()
		}
	}
	return m, nil
}

func (m *browseModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.editing = false
		m.input.Blur()
		return m, nil
	case "enter":
		src := strings.TrimSpace(m.input.Value())
		m.editing = false
		m.input.Blur()
		if src == "" {
			return m, nil
		}
		return m, func() tea.Msg {
			root, err := m.eval(src)
			return evalMsg{root: root, err: err, src: src}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *browseModel) View() string {
	var b strings.Builder
	b.WriteString(m.style.render(titleStyle, "jlinspect"))
	b.WriteString(" ")
	b.WriteString(m.source)
	b.WriteString("\n\n")

	end := min(m.offset+m.height, len(m.rows))
	for i := m.offset; i < end; i++ {
		r := m.rows[i]
		marker := "  "
		if len(r.node.Elems) > 0 {
			marker = "+ "
			if m.expanded[r.node] {
				marker = "- "
			}
		}
		line := strings.Repeat("  ", r.depth) + marker + r.prefix + label(r.node, m.style)
		if i == m.cursor {
			b.WriteString(m.style.render(selectedStyle, "> "+line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.editing:
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(m.style.render(helpStyle, "enter evaluate • esc cancel"))
	case m.err != nil:
		b.WriteString(m.style.render(errorStyle, fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
		fallthrough
	default:
		b.WriteString(m.style.render(helpStyle, "↑/↓ move • enter toggle • e eval • q quit"))
	}
	return b.String()
}
