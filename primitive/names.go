package primitive

// Exported entry points of the runtime image.
const (
	BoxBool      = "jl_box_bool"
	UnboxBool    = "jl_unbox_bool"
	BoxChar      = "jl_box_char"
	UnboxChar    = "jl_unbox_uint32" // Char is a 32-bit primitive
	BoxInt8      = "jl_box_int8"
	UnboxInt8    = "jl_unbox_int8"
	BoxInt16     = "jl_box_int16"
	UnboxInt16   = "jl_unbox_int16"
	BoxInt32     = "jl_box_int32"
	UnboxInt32   = "jl_unbox_int32"
	BoxInt64     = "jl_box_int64"
	UnboxInt64   = "jl_unbox_int64"
	BoxUint8     = "jl_box_uint8"
	UnboxUint8   = "jl_unbox_uint8"
	BoxUint16    = "jl_box_uint16"
	UnboxUint16  = "jl_unbox_uint16"
	BoxUint32    = "jl_box_uint32"
	UnboxUint32  = "jl_unbox_uint32"
	BoxUint64    = "jl_box_uint64"
	UnboxUint64  = "jl_unbox_uint64"
	BoxFloat32   = "jl_box_float32"
	UnboxFloat32 = "jl_unbox_float32"
	BoxFloat64   = "jl_box_float64"
	UnboxFloat64 = "jl_unbox_float64"

	Call0             = "jl_call0"
	Call1             = "jl_call1"
	Call2             = "jl_call2"
	Call3             = "jl_call3"
	CallN             = "jl_call"
	ExceptionOccurred = "jl_exception_occurred"
	EvalString        = "jl_eval_string"

	SymbolN   = "jl_symbol_n"
	GetGlobal = "jl_get_global"
	SetGlobal = "jl_set_global"

	FieldIndex         = "jl_field_index"
	GetNthField        = "jl_get_nth_field"
	GetNthFieldNoalloc = "jl_get_nth_field_noalloc"
	GetField           = "jl_get_field"
	FieldIsDefined     = "jl_field_isdefined"
	ComputeFieldTypes  = "jl_compute_fieldtypes"

	ApplyType       = "jl_apply_type"
	NewStructv      = "jl_new_structv"
	TupleTypeFill   = "jl_tupletype_fill"
	ApplyTupleTypeV = "jl_apply_tuple_type_v"
	NewStructUninit = "jl_new_struct_uninit"

	ApplyArrayType = "jl_apply_array_type"
	ArrayEltype    = "jl_array_eltype"
	AllocArray1d   = "jl_alloc_array_1d"
	AllocArray2d   = "jl_alloc_array_2d"
	AllocArray3d   = "jl_alloc_array_3d"
	NewArray       = "jl_new_array"
	PtrToArray1d   = "jl_ptr_to_array_1d"

	PcharToString = "jl_pchar_to_string"
	TypeofStr     = "jl_typeof_str"
	TypenameStr   = "jl_typename_str"

	GCQueueRoot = "jl_gc_queue_root"
	GCEnable    = "jl_gc_enable"
)

// Exports lists every entry point a complete runtime image provides.
var Exports = []string{
	BoxBool, UnboxBool, BoxChar, UnboxChar,
	BoxInt8, UnboxInt8, BoxInt16, UnboxInt16, BoxInt32, UnboxInt32, BoxInt64, UnboxInt64,
	BoxUint8, UnboxUint8, BoxUint16, UnboxUint16, BoxUint32, BoxUint64, UnboxUint64,
	BoxFloat32, UnboxFloat32, BoxFloat64, UnboxFloat64,
	Call0, Call1, Call2, Call3, CallN, ExceptionOccurred, EvalString,
	SymbolN, GetGlobal, SetGlobal,
	FieldIndex, GetNthField, GetNthFieldNoalloc, GetField, FieldIsDefined, ComputeFieldTypes,
	ApplyType, NewStructv, TupleTypeFill, ApplyTupleTypeV, NewStructUninit,
	ApplyArrayType, ArrayEltype, AllocArray1d, AllocArray2d, AllocArray3d, NewArray, PtrToArray1d,
	PcharToString, TypeofStr, TypenameStr,
	GCQueueRoot, GCEnable,
}
