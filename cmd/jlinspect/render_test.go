package main

import (
	"bytes"
	"testing"

	"github.com/wippyai/jlvalue/convert"
	"github.com/wippyai/jlvalue/predicate"
)

func sampleTree() *convert.Node {
	return &convert.Node{
		Kind:  predicate.KindStruct,
		Type:  "Point",
		Addr:  0x100,
		Names: []string{"x", "label", "tags"},
		Elems: []*convert.Node{
			{Kind: predicate.KindInt64, Int: -3},
			{Kind: predicate.KindString, Str: "a\"b"},
			{Kind: predicate.KindTuple, Type: "Tuple{Symbol, Char}", Elems: []*convert.Node{
				{Kind: predicate.KindSymbol, Str: "k"},
				{Kind: predicate.KindChar, Int: 'λ'},
			}},
		},
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		node *convert.Node
		want string
	}{
		{&convert.Node{Kind: predicate.KindNothing}, "nothing"},
		{&convert.Node{Kind: predicate.KindBool, Bool: true}, "bool true"},
		{&convert.Node{Kind: predicate.KindUint16, Uint: 9}, "uint16 9"},
		{&convert.Node{Kind: predicate.KindFloat32, Float: 0.5}, "float32 0.5"},
		{&convert.Node{Kind: predicate.KindDataType, Str: "Int64"}, "datatype Int64"},
		{&convert.Node{Kind: predicate.KindArray, Type: "Array{Float64, 2}", Dims: []uint64{2, 3}}, "array Array{Float64, 2} 2×3"},
		{&convert.Node{Kind: predicate.KindSimpleVector, Elems: make([]*convert.Node, 2), Truncated: true}, "svec (2) …"},
		{&convert.Node{Kind: predicate.KindModule, Type: "Module", Addr: 0x40}, "module Module @0x40"},
		{&convert.Node{Kind: predicate.KindTuple, Ref: 0x80}, "tuple (see 0x80)"},
	}
	for _, tt := range tests {
		if got := label(tt.node, false); got != tt.want {
			t.Errorf("label(%s) = %q, want %q", tt.node.Kind, got, tt.want)
		}
	}
}

func TestRenderTree(t *testing.T) {
	var buf bytes.Buffer
	if err := renderTree(&buf, sampleTree(), false); err != nil {
		t.Fatal(err)
	}
	want := `struct Point (3)
  x = int64 -3
  label = string "a\"b"
  tags = tuple Tuple{Symbol, Char} (2)
    [1] symbol :k
    [2] char 'λ'
`
	if got := buf.String(); got != want {
		t.Errorf("renderTree =\n%s\nwant\n%s", got, want)
	}
}
