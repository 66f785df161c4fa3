package engine

import (
	"bytes"
	"sort"

	"github.com/tetratelabs/wazero/api"
)

// wazero refuses ExportedFunction on host modules, so registered host
// functions are reached through a guest module that imports each of them
// and exports it again under the same name.

const (
	sectionType   = 1
	sectionImport = 2
	sectionExport = 7

	funcTypeByte = 0x60
	externFunc   = 0x00
)

// shimModule encodes a module importing every function in defs from module
// and re-exporting it. Function indices follow the sorted export names.
func shimModule(module string, defs map[string]api.FunctionDefinition) []byte {
	names := make([]string, 0, len(defs))
	for n := range defs {
		names = append(names, n)
	}
	sort.Strings(names)

	var types, imports, exports bytes.Buffer
	writeU32(&types, uint32(len(names)))
	writeU32(&imports, uint32(len(names)))
	writeU32(&exports, uint32(len(names)))
	for i, n := range names {
		def := defs[n]
		types.WriteByte(funcTypeByte)
		writeValTypes(&types, def.ParamTypes())
		writeValTypes(&types, def.ResultTypes())

		writeName(&imports, module)
		writeName(&imports, n)
		imports.WriteByte(externFunc)
		writeU32(&imports, uint32(i))

		writeName(&exports, n)
		exports.WriteByte(externFunc)
		writeU32(&exports, uint32(i))
	}

	var w bytes.Buffer
	w.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	writeSection(&w, sectionType, types.Bytes())
	writeSection(&w, sectionImport, imports.Bytes())
	writeSection(&w, sectionExport, exports.Bytes())
	return w.Bytes()
}

func writeSection(w *bytes.Buffer, id byte, data []byte) {
	w.WriteByte(id)
	writeU32(w, uint32(len(data)))
	w.Write(data)
}

// api.ValueType values are the binary value type codes.
func writeValTypes(w *bytes.Buffer, types []api.ValueType) {
	writeU32(w, uint32(len(types)))
	for _, t := range types {
		w.WriteByte(t)
	}
}

func writeName(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
}

// writeU32 writes v as unsigned LEB128.
func writeU32(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}
