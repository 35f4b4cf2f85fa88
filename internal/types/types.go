// Package types is a language-neutral representation of C/C++ types: the
// primitives, compound types (pointers, references, arrays), and aggregates
// (structs, unions, enums) that a function signature is built from.
//
// A Type value is cheap to copy: compound types share their inner Type
// through a pointer, and aggregates are referenced by interned id rather
// than embedded by value. The aggregate bodies themselves live in a
// TypeInfo registry, which is what breaks cycles such as a struct holding a
// pointer to itself.
package types

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// PointerSize is the size, in bytes, of a pointer or reference on the
// supported x86-64 address models.
const PointerSize = 8

// MaxAlign is the maximum alignment applied when laying out aggregate
// members that don't carry an explicit bit offset.
const MaxAlign = 8

// Kind discriminates the variants of Type.
type Kind int

const (
	Void Kind = iota
	Bool
	Char
	WChar
	Short
	Int
	Long
	Float
	Double
	Pointer
	Reference
	Array
	FixedArray
	Function
	Struct
	Union
	Enum
)

// Type is a tagged variant over the C/C++ type grammar described in §3.
// Only the fields relevant to Kind are populated; the zero value of the
// others is ignored.
type Type struct {
	Kind Kind

	// Char/Short/Int/Long: true for the signed variant.
	Signed bool

	// Pointer/Reference/Array/FixedArray: the element type.
	Inner *Type

	// FixedArray: the element count.
	Count int

	// Function: the function signature.
	Func *FunctionType

	// Struct/Union/Enum: the interned aggregate id.
	ID string
}

// FunctionType is an ordered list of parameter types plus a return type.
// Value equality is structural.
type FunctionType struct {
	Params []Type
	Return Type
}

// NewFunctionType builds a FunctionType from its parameters and return type.
func NewFunctionType(params []Type, ret Type) *FunctionType {
	return &FunctionType{Params: params, Return: ret}
}

// Equal reports whether two function types have the same structure.
func (f *FunctionType) Equal(other *FunctionType) bool {
	if f == other {
		return true
	}
	if f == nil || other == nil {
		return false
	}
	if len(f.Params) != len(other.Params) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Equal(other.Params[i]) {
			return false
		}
	}
	return f.Return.Equal(other.Return)
}

// Equal reports whether two types are structurally identical.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case Char, Short, Int, Long:
		return t.Signed == other.Signed
	case Pointer, Reference, Array:
		return t.Inner.Equal(*other.Inner)
	case FixedArray:
		return t.Count == other.Count && t.Inner.Equal(*other.Inner)
	case Function:
		return t.Func.Equal(other.Func)
	case Struct, Union, Enum:
		return t.ID == other.ID
	default:
		return true
	}
}

// DataMember is a single field of a struct or union.
type DataMember struct {
	Name       string
	Type       Type
	BitOffset  *int
	IsBitfield bool
}

// BasicMember builds a DataMember without an explicit bit offset.
func BasicMember(name string, typ Type) DataMember {
	return DataMember{Name: name, Type: typ}
}

// Method is a single virtual member function of a struct.
type Method struct {
	Name string
	Type *FunctionType
}

// StructType is a C/C++ struct or class with optional single inheritance.
type StructType struct {
	Name           string
	Base           *string // StructId of the base class, if any
	Members        []DataMember
	VirtualMethods []Method
	Size           *int
}

// Stub returns an empty StructType, used as a placeholder while resolving
// a struct's own members (so that self-referential pointers resolve).
func Stub(name string) StructType {
	return StructType{Name: name}
}

// HasVirtualMethods reports whether s, or any of its bases, declares a
// virtual method.
func (s *StructType) HasVirtualMethods(info *TypeInfo) bool {
	if len(s.VirtualMethods) > 0 {
		return true
	}
	if s.Base == nil {
		return false
	}
	if base, ok := info.Structs[*s.Base]; ok {
		return base.HasVirtualMethods(info)
	}
	return false
}

// AllMembers returns every data member of s, base members first, in
// base-definition order.
func (s *StructType) AllMembers(info *TypeInfo) []DataMember {
	var members []DataMember
	if s.Base != nil {
		if base, ok := info.Structs[*s.Base]; ok {
			members = append(members, base.AllMembers(info)...)
		}
	}
	return append(members, s.Members...)
}

// AllVirtualMethods returns every virtual method of s, base methods first.
func (s *StructType) AllVirtualMethods(info *TypeInfo) []Method {
	var methods []Method
	if s.Base != nil {
		if base, ok := info.Structs[*s.Base]; ok {
			methods = append(methods, base.AllVirtualMethods(info)...)
		}
	}
	return append(methods, s.VirtualMethods...)
}

// UnionType is a C/C++ union.
type UnionType struct {
	Name    string
	Members []DataMember
	Size    *int
}

// EnumMember is a single named constant of an enum.
type EnumMember struct {
	Name  string
	Value int64
}

// EnumType is a C/C++ enum.
type EnumType struct {
	Name    string
	Members []EnumMember
	Size    *int
}

// TypeInfo is the registry of aggregate bodies, keyed by the interned ids
// referenced from Type values. Every StructId/UnionId/EnumId referenced by
// any Type in a given pipeline run must resolve here.
type TypeInfo struct {
	Structs map[string]*StructType
	Unions  map[string]*UnionType
	Enums   map[string]*EnumType
}

// NewTypeInfo returns an empty TypeInfo.
func NewTypeInfo() *TypeInfo {
	return &TypeInfo{
		Structs: make(map[string]*StructType),
		Unions:  make(map[string]*UnionType),
		Enums:   make(map[string]*EnumType),
	}
}

// Size returns the size, in bytes, of t, or false if t's size is not known
// (an unbounded Array, or an aggregate whose size was never recorded).
func (t Type) Size(info *TypeInfo) (int, bool) {
	switch t.Kind {
	case Void:
		return 0, true
	case Bool, Char:
		return 1, true
	case WChar:
		return wcharSize, true
	case Short:
		return 2, true
	case Int:
		return 4, true
	case Long:
		return 8, true
	case Float:
		return 4, true
	case Double:
		return 8, true
	case Pointer, Reference:
		return PointerSize, true
	case Array:
		return 0, false
	case FixedArray:
		sz, ok := t.Inner.Size(info)
		if !ok {
			return 0, false
		}
		return sz * t.Count, true
	case Function:
		return PointerSize, true
	case Union:
		u, ok := info.Unions[t.ID]
		if !ok || u.Size == nil {
			return 0, false
		}
		return *u.Size, true
	case Struct:
		s, ok := info.Structs[t.ID]
		if !ok || s.Size == nil {
			return 0, false
		}
		return *s.Size, true
	case Enum:
		e, ok := info.Enums[t.ID]
		if !ok || e.Size == nil {
			return 0, false
		}
		return *e.Size, true
	default:
		return 0, false
	}
}

// wcharSize is the size of WChar on the supported platforms: 2 on Windows,
// 4 on Unix. The module targets Windows-flavoured PE/COFF binaries in
// practice (the spec's canonical .rdata/.text section names are the
// Windows convention), so Windows sizing is the default; a build that
// targets a Unix target's DWARF output can override it.
var wcharSize = 2

// SetWCharSize overrides the platform-dependent size used for WChar.
func SetWCharSize(n int) {
	wcharSize = n
}

// Name computes the C spelling of t. Names are injective over a given
// TypeInfo by construction (aggregate names are unique identifiers), which
// is what makes them usable as a DWARF type-deduplication cache key.
func (t Type) Name() string {
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Char:
		if t.Signed {
			return "char"
		}
		return "unsigned char"
	case WChar:
		return "wchar_t"
	case Short:
		if t.Signed {
			return "short"
		}
		return "unsigned short"
	case Int:
		if t.Signed {
			return "int"
		}
		return "unsigned int"
	case Long:
		if t.Signed {
			return "long"
		}
		return "unsigned long"
	case Float:
		return "float"
	case Double:
		return "double"
	case Struct, Union, Enum:
		return t.ID
	case Pointer:
		return t.Inner.Name() + "*"
	case Reference:
		return t.Inner.Name() + "&"
	case Array:
		return t.Inner.Name() + "[]"
	case FixedArray:
		return fmt.Sprintf("%s[%d]", t.Inner.Name(), t.Count)
	case Function:
		var params strings.Builder
		for i, p := range t.Func.Params {
			if i > 0 {
				params.WriteString(", ")
			}
			params.WriteString(p.Name())
		}
		return fmt.Sprintf("%s (%s)", t.Func.Return.Name(), params.String())
	default:
		return ""
	}
}

var anonCounter atomic.Int64

// NextAnonymousName allocates the next synthetic name for an anonymous
// aggregate, of the form "__anonymous<N>", from a process-local counter.
func NextAnonymousName() string {
	n := anonCounter.Add(1) - 1
	return fmt.Sprintf("__anonymous%d", n)
}
