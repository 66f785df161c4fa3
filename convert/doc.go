// Package convert translates between heap object graphs and Go values.
//
// Decoder walks a value and produces a Node tree: scalars are unboxed,
// strings and symbols copied, and containers (simple vectors, tuples,
// named tuples, structs, arrays) descended into. Objects reached twice
// become Ref nodes pointing at the first occurrence, so cyclic graphs
// decode to finite trees. Node.Interface flattens a tree into plain Go
// values.
//
// Encoder goes the other way for the subset the call primitives can build:
// scalars, strings, symbols, tuples and arrays of a single element type.
// Encoded values are not rooted.
package convert
