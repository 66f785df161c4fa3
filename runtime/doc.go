// Package runtime wires the value layer together for one runtime image.
//
// A Runtime owns a header decoder, the write barrier, the scalar adapter,
// the layout readers and the predicate layer, all sharing one heap view and
// one set of lazily resolved handles. Open hosts a wasm image with wazero;
// New assembles the same stack over caller-supplied parts, which is how
// tests run against a simulated heap.
//
// Calls into the runtime leave a pending exception in a global slot rather
// than failing. Eval and Call check the slot after every call and turn a
// pending exception into an *Exception error.
//
// A Runtime is not safe for concurrent use.
package runtime
