package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/jlvalue/convert"
	"github.com/wippyai/jlvalue/predicate"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// styler applies lipgloss styles only when color output is enabled.
type styler bool

func (s styler) render(st lipgloss.Style, text string) string {
	if !s {
		return text
	}
	return st.Render(text)
}

// label describes a node on one line, without its children.
func label(n *convert.Node, s styler) string {
	kind := s.render(kindStyle, n.Kind.String())
	if n.Ref != 0 {
		return kind + " " + s.render(valueStyle, fmt.Sprintf("(see 0x%x)", n.Ref))
	}
	var val string
	switch n.Kind {
	case predicate.KindNull, predicate.KindNothing:
		return kind
	case predicate.KindBool:
		val = strconv.FormatBool(n.Bool)
	case predicate.KindChar:
		val = strconv.QuoteRune(rune(n.Int))
	case predicate.KindInt8, predicate.KindInt16, predicate.KindInt32, predicate.KindInt64:
		val = strconv.FormatInt(n.Int, 10)
	case predicate.KindUint8, predicate.KindUint16, predicate.KindUint32, predicate.KindUint64:
		val = strconv.FormatUint(n.Uint, 10)
	case predicate.KindFloat32:
		val = strconv.FormatFloat(n.Float, 'g', -1, 32)
	case predicate.KindFloat64:
		val = strconv.FormatFloat(n.Float, 'g', -1, 64)
	case predicate.KindString:
		val = strconv.Quote(n.Str)
	case predicate.KindSymbol:
		val = ":" + n.Str
	case predicate.KindDataType:
		val = n.Str
	case predicate.KindArray:
		val = n.Type + " " + shape(n.Dims)
	case predicate.KindSimpleVector, predicate.KindTuple, predicate.KindNamedTuple, predicate.KindStruct:
		val = fmt.Sprintf("%s (%d)", n.Type, len(n.Elems))
	default:
		val = fmt.Sprintf("%s @0x%x", n.Type, n.Addr)
	}
	out := kind + " " + s.render(valueStyle, strings.TrimSpace(val))
	if n.Truncated {
		out += " …"
	}
	return out
}

func shape(dims []uint64) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.FormatUint(d, 10)
	}
	return strings.Join(parts, "×")
}

// childName is the prefix shown before child i of n.
func childName(n *convert.Node, i int, s styler) string {
	if i < len(n.Names) {
		return s.render(nameStyle, n.Names[i]) + " = "
	}
	return s.render(nameStyle, "["+strconv.Itoa(i+1)+"]") + " "
}

// renderTree writes n and its descendants, one per line, indented by depth.
func renderTree(w io.Writer, n *convert.Node, s styler) error {
	return renderNode(w, n, "", 0, s)
}

func renderNode(w io.Writer, n *convert.Node, prefix string, depth int, s styler) error {
	if _, err := fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", depth), prefix, label(n, s)); err != nil {
		return err
	}
	for i, c := range n.Elems {
		if err := renderNode(w, c, childName(n, i, s), depth+1, s); err != nil {
			return err
		}
	}
	return nil
}
