// Package engine hosts a runtime image on wazero.
//
// The runtime image is a core WebAssembly module whose linear memory is the
// managed heap and whose exports are the runtime's C entry points. The
// engine compiles and instantiates the image, then exposes it through the
// interfaces the rest of the module consumes:
//
//	Instance.Invoke     primitive.Invoker   call an exported entry point
//	Instance.Lookup     primitive.Symbols   address of an exported C global
//	Instance.Memory     jlvalue.Memory      the heap view
//	Instance.Allocator  jlvalue.Allocator   malloc/free scratch memory
//
// # Host functions
//
// Go functions registered with Engine.RegisterFunc are instantiated as host
// modules before the image. The image may import them, and Invoke falls
// back to them when the image itself does not export a name, which lets a
// host supply primitives an image build left out.
//
// # Concurrency
//
// An Instance must be used by one goroutine at a time, like the wazero
// module it wraps. The Engine may load several images concurrently.
package engine
