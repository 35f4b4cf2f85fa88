// Package dwarfw builds a DWARF 5 type and symbol tree from a recovered
// TypeInfo/FunctionSymbol set and serializes it into .debug_abbrev,
// .debug_info and .debug_str section bytes ready to embed in an ELF
// object.
//
// Type DIEs are cached by a structural name that is injective over a
// given TypeInfo (types.Type.Name, or the DWARF base-type spelling for
// primitives), so a type referenced from many function signatures is
// only emitted once.
package dwarfw

import (
	"fmt"

	"github.com/jac3km4/zoltan/internal/resolve"
	"github.com/jac3km4/zoltan/internal/types"
)

// Builder constructs the DIE tree for one compile unit.
type Builder struct {
	info  *types.TypeInfo
	cu    *die
	ser   *serializer
	cache map[string]*die

	wcharSize int
}

// NewBuilder starts a fresh compile unit over the aggregates registered in
// info. wcharSize is the byte size to use for the WChar base type (2 on
// Windows, 4 on Unix).
func NewBuilder(info *types.TypeInfo, wcharSize int) *Builder {
	cu := newDie(dwTagCompileUnit, true)
	cu.strp(dwAtProducer, "zoltan")
	cu.data1(dwAtLanguage, dwLangCPlus)
	cu.strp(dwAtCompDir, ".")

	return &Builder{
		info:      info,
		cu:        cu,
		ser:       newSerializer(),
		cache:     make(map[string]*die),
		wcharSize: wcharSize,
	}
}

// cacheKey returns the structural name used to deduplicate t's DIE.
func (b *Builder) cacheKey(t types.Type) string {
	if t.Kind == types.Short || t.Kind == types.Int || t.Kind == types.Long || t.Kind == types.WChar {
		name, _, _ := b.dwarfBaseTypeName(t)
		return name
	}
	return t.Name()
}

// GetType returns the DIE for t, building and caching it on first use.
func (b *Builder) GetType(t types.Type) *die {
	key := b.cacheKey(t)
	if d, ok := b.cache[key]; ok {
		return d
	}

	switch t.Kind {
	case types.Void, types.Bool, types.Char, types.WChar, types.Short, types.Int, types.Long, types.Float, types.Double:
		return b.defineBaseType(t, key)
	case types.Pointer:
		return b.definePointer(t, key)
	case types.Reference:
		return b.defineReference(t, key)
	case types.Array:
		return b.defineArray(t, key)
	case types.FixedArray:
		return b.defineFixedArray(t, key)
	case types.Function:
		return b.defineFunctionType(t, key)
	case types.Struct:
		return b.defineStruct(t, key)
	case types.Union:
		return b.defineUnion(t, key)
	case types.Enum:
		return b.defineEnum(t, key)
	default:
		return b.defineBaseType(types.Type{Kind: types.Void}, "void")
	}
}

func (b *Builder) dwarfBaseTypeName(t types.Type) (name string, encoding uint64, size uint64) {
	switch t.Kind {
	case types.Void:
		return "void", dwAteSigned, 0
	case types.Bool:
		return "bool", dwAteBoolean, 1
	case types.Char:
		if t.Signed {
			return "char", dwAteSignedChar, 1
		}
		return "unsigned char", dwAteUnsignedChar, 1
	case types.WChar:
		return "wchar_t", dwAteUnsigned, uint64(b.wcharSize)
	case types.Short:
		if t.Signed {
			return "int16_t", dwAteSigned, 2
		}
		return "uint16_t", dwAteUnsigned, 2
	case types.Int:
		if t.Signed {
			return "int32_t", dwAteSigned, 4
		}
		return "uint32_t", dwAteUnsigned, 4
	case types.Long:
		if t.Signed {
			return "int64_t", dwAteSigned, 8
		}
		return "uint64_t", dwAteUnsigned, 8
	case types.Float:
		return "float", dwAteFloat, 4
	case types.Double:
		return "double", dwAteFloat, 8
	default:
		return "void", dwAteSigned, 0
	}
}

func (b *Builder) defineBaseType(t types.Type, key string) *die {
	name, encoding, size := b.dwarfBaseTypeName(t)
	d := newDie(dwTagBaseType, false)
	d.strp(dwAtName, name)
	d.data1(dwAtEncoding, encoding)
	d.data1(dwAtByteSize, size)
	b.register(key, d)
	return d
}

func (b *Builder) register(key string, d *die) *die {
	b.cache[key] = d
	b.cu.addChild(d)
	return d
}

func (b *Builder) definePointer(t types.Type, key string) *die {
	d := newDie(dwTagPointerType, false)
	d.data1(dwAtByteSize, types.PointerSize)
	b.register(key, d)
	d.ref(dwAtType, b.GetType(*t.Inner))
	return d
}

func (b *Builder) defineReference(t types.Type, key string) *die {
	d := newDie(dwTagReferenceType, false)
	d.data1(dwAtByteSize, types.PointerSize)
	b.register(key, d)
	d.ref(dwAtType, b.GetType(*t.Inner))
	return d
}

func (b *Builder) defineArray(t types.Type, key string) *die {
	d := newDie(dwTagArrayType, false)
	b.register(key, d)
	d.ref(dwAtType, b.GetType(*t.Inner))
	return d
}

func (b *Builder) defineFixedArray(t types.Type, key string) *die {
	d := newDie(dwTagArrayType, true)
	b.register(key, d)
	d.ref(dwAtType, b.GetType(*t.Inner))

	sub := newDie(dwTagSubrangeType, false)
	sub.udata(dwAtCount, uint64(t.Count))
	d.addChild(sub)
	return d
}

func (b *Builder) defineFunctionType(t types.Type, key string) *die {
	d := newDie(dwTagSubroutineType, len(t.Func.Params) > 0)
	b.register(key, d)
	d.ref(dwAtType, b.GetType(t.Func.Return))
	for _, p := range t.Func.Params {
		param := newDie(dwTagFormalParameter, false)
		param.ref(dwAtType, b.GetType(p))
		d.addChild(param)
	}
	return d
}

func (b *Builder) defineUnion(t types.Type, key string) *die {
	u, ok := b.info.Unions[t.ID]
	if !ok {
		u = &types.UnionType{Name: t.ID}
	}
	d := newDie(dwTagUnionType, len(u.Members) > 0)
	d.strp(dwAtName, u.Name)
	if u.Size != nil {
		d.data4(dwAtByteSize, uint64(*u.Size))
	}
	b.register(key, d)

	for _, m := range u.Members {
		d.addChild(b.defineDataMember(m, 0))
	}
	return d
}

func (b *Builder) defineEnum(t types.Type, key string) *die {
	e, ok := b.info.Enums[t.ID]
	if !ok {
		e = &types.EnumType{Name: t.ID}
	}
	d := newDie(dwTagEnumerationType, len(e.Members) > 0)
	d.strp(dwAtName, e.Name)
	d.ref(dwAtType, b.GetType(types.Type{Kind: types.Int, Signed: true}))
	if e.Size != nil {
		d.data4(dwAtByteSize, uint64(*e.Size))
	}
	b.register(key, d)

	for _, m := range e.Members {
		child := newDie(dwTagEnumerator, false)
		child.strp(dwAtName, m.Name)
		child.sdata(dwAtConstValue, m.Value)
		d.addChild(child)
	}
	return d
}

const vtableAlign = types.PointerSize

func vtableTypeName(structName string) string {
	return fmt.Sprintf("%s::__vtable", structName)
}

func vtableFieldName() string {
	return "__vfptr"
}

func (b *Builder) defineStruct(t types.Type, key string) *die {
	s, ok := b.info.Structs[t.ID]
	if !ok {
		s = &types.StructType{Name: t.ID}
	}

	d := newDie(dwTagStructureType, true)
	d.strp(dwAtName, s.Name)
	if s.Size != nil {
		d.data4(dwAtByteSize, uint64(*s.Size))
	}
	// the struct is cached (and visible to GetType) before its members
	// are built, so a member that points back at this struct resolves
	// instead of recursing forever.
	b.register(key, d)

	offset := uint64(0)

	if s.Base != nil {
		baseDie := b.GetType(types.Type{Kind: types.Struct, ID: *s.Base})
		inh := newDie(dwTagInheritance, false)
		inh.ref(dwAtType, baseDie)
		inh.data4(dwAtDataMemberLoc, 0)
		d.addChild(inh)
		if baseSize, sizeOK := (types.Type{Kind: types.Struct, ID: *s.Base}).Size(b.info); sizeOK {
			offset = uint64(baseSize)
		}
	}

	if s.HasVirtualMethods(b.info) && s.Base == nil {
		// only the root of a polymorphic hierarchy carries a vtable
		// pointer; derived classes inherit it through DW_TAG_inheritance.
		vtableDie := b.defineVTable(s)
		field := newDie(dwTagMember, false)
		field.strp(dwAtName, vtableFieldName())
		field.ref(dwAtType, vtableDie)
		field.data4(dwAtDataMemberLoc, 0)
		d.addChild(field)
		offset = vtableAlign
	}

	for _, m := range s.Members {
		if m.BitOffset == nil {
			if size, sizeOK := m.Type.Size(b.info); sizeOK {
				align := size
				if align > types.MaxAlign {
					align = types.MaxAlign
				}
				if align > 0 {
					if rem := offset % uint64(align); rem != 0 {
						offset += uint64(align) - rem
					}
				}
				member := b.defineDataMember(m, offset)
				d.addChild(member)
				offset += uint64(size)
				continue
			}
		}
		d.addChild(b.defineDataMember(m, offset))
	}

	return d
}

func (b *Builder) defineDataMember(m types.DataMember, baseOffset uint64) *die {
	d := newDie(dwTagMember, false)
	d.strp(dwAtName, m.Name)
	d.ref(dwAtType, b.GetType(m.Type))
	if m.BitOffset != nil {
		d.data4(dwAtDataBitOffset, uint64(*m.BitOffset))
	} else {
		d.data4(dwAtDataMemberLoc, baseOffset)
	}
	return d
}

// defineVTable synthesizes a pointer-sized pointer-to-struct type
// representing a polymorphic class's vtable pointer, since the recovered
// type model has no native vtable type of its own.
func (b *Builder) defineVTable(s *types.StructType) *die {
	vtableStruct := newDie(dwTagStructureType, len(s.VirtualMethods) > 0)
	vtableStruct.strp(dwAtName, vtableTypeName(s.Name))
	vtableStruct.data4(dwAtByteSize, uint64(len(s.AllVirtualMethods(b.info)))*types.PointerSize)
	b.cu.addChild(vtableStruct)

	for i, method := range s.AllVirtualMethods(b.info) {
		slot := newDie(dwTagMember, false)
		slot.strp(dwAtName, method.Name)
		fnType := b.defineVirtualMethodType(s, method)
		ptr := newDie(dwTagPointerType, false)
		ptr.data1(dwAtByteSize, types.PointerSize)
		ptr.ref(dwAtType, fnType)
		b.cu.addChild(ptr)
		slot.ref(dwAtType, ptr)
		slot.data4(dwAtDataMemberLoc, uint64(i)*types.PointerSize)
		vtableStruct.addChild(slot)
	}

	ptrToVTable := newDie(dwTagPointerType, false)
	ptrToVTable.data1(dwAtByteSize, types.PointerSize)
	ptrToVTable.ref(dwAtType, vtableStruct)
	b.cu.addChild(ptrToVTable)

	return ptrToVTable
}

// defineVirtualMethodType builds a subroutine type for a virtual method
// with an artificial leading "this" parameter, mirroring how the
// recovered DWARF for a C++ vtable slot describes its call signature.
func (b *Builder) defineVirtualMethodType(s *types.StructType, m types.Method) *die {
	d := newDie(dwTagSubroutineType, true)
	d.ref(dwAtType, b.GetType(m.Type.Return))
	b.cu.addChild(d)

	this := newDie(dwTagFormalParameter, false)
	this.flag(dwAtArtificial, true)
	thisType := types.Type{Kind: types.Pointer, Inner: &types.Type{Kind: types.Struct, ID: s.Name}}
	this.ref(dwAtType, b.GetType(thisType))
	d.addChild(this)
	d.attrs = append(d.attrs, dieAttr{name: dwAtObjectPointer, form: dwFormRef4, ref: this})

	for _, p := range m.Type.Params {
		param := newDie(dwTagFormalParameter, false)
		param.ref(dwAtType, b.GetType(p))
		d.addChild(param)
	}
	return d
}

// AddFunctionSymbol appends a DW_TAG_subprogram DIE describing a resolved
// function. The address attached to sym is used directly as DW_AT_low_pc:
// resolve.Resolve already produces a final absolute address, so no
// further image-base adjustment happens here.
func (b *Builder) AddFunctionSymbol(sym resolve.FunctionSymbol) {
	d := newDie(dwTagSubprogram, len(sym.Type.Params) > 0)
	d.strp(dwAtName, sym.Name)
	d.addr(dwAtLowPc, uint64(sym.Addr))
	d.flag(dwAtExternal, true)
	d.ref(dwAtType, b.GetType(sym.Type.Return))
	b.cu.addChild(d)

	for i, p := range sym.Type.Params {
		param := newDie(dwTagFormalParameter, false)
		param.strp(dwAtName, fmt.Sprintf("arg%d", i))
		param.ref(dwAtType, b.GetType(p))
		d.addChild(param)
	}
}

// Sections serializes the accumulated compile unit into the three DWARF
// sections a consumer needs: .debug_abbrev, .debug_info, .debug_str.
func (b *Builder) Sections(addressSize byte) (debugAbbrev, debugInfo, debugStr []byte) {
	b.ser.write(b.cu)
	abbrev, info, str := b.ser.finish()
	return abbrev, buildCU(info, addressSize), str
}
