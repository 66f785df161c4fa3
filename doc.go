// Package jlvalue reads and writes heap objects of an embedded managed
// runtime without going through its evaluator.
//
// The runtime image is hosted by wazero. Its heap is the instance's linear
// memory and its exported C entry points are the call primitives this
// library builds on. Values are raw 32-bit addresses whose preceding header
// word carries the type descriptor and the collector's tag bits.
//
// # Architecture Overview
//
//	jlvalue/          Root package with Value, Memory and Allocator
//	├── abi/          Layout profile: word size, tag bits, field offsets
//	├── header/       Header decoding (type descriptor + collector bits)
//	├── barrier/      Generational write barrier
//	├── primitive/    Call primitives and lazily resolved constant handles
//	├── scalar/       Boxing and unboxing of host scalars
//	├── reader/       Strings, symbols, simple vectors, arrays, fields
//	├── predicate/    Type predicates and Kind classification
//	├── engine/       wazero host for a runtime image
//	├── runtime/      Facade wiring everything for one instance
//	├── convert/      Heap graph <-> Go value conversion
//	├── snapshot/     CBOR / msgpack export of converted values
//	├── config/       TOML / YAML configuration
//	└── errors/       Structured error types
//
// # Quick Start
//
//	rt, err := runtime.Open(ctx, image, config.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	v, err := rt.Scalars().BoxInt64(ctx, 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(rt.Classifier().Classify(v)) // int64
//
// # Safety
//
// Nothing here roots values. A Value returned by a primitive may be
// collected by the next allocation unless the caller keeps it reachable
// from the runtime's root set. Decoding a non-heap address is undefined.
package jlvalue
