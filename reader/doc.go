// Package reader decodes the payload of heap values: strings, symbols,
// simple vectors, N-dimensional arrays and the field metadata of type
// descriptors.
//
// Every reader treats a Nil value as "no data" and returns an empty view.
// Readers do not check the value's type; establish it with the predicate
// package first.
//
// Struct and tuple fields are never read by offset. Field layout depends on
// which fields are stored inline, so fields go through the runtime's field
// primitives.
package reader
