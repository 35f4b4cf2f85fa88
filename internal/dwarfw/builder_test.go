package dwarfw

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jac3km4/zoltan/internal/resolve"
	"github.com/jac3km4/zoltan/internal/types"
)

func TestCUHeaderEncodesVersion5(t *testing.T) {
	b := NewBuilder(types.NewTypeInfo(), 2)
	b.GetType(types.Type{Kind: types.Int, Signed: true})

	_, info, _ := b.Sections(8)
	if len(info) < 12 {
		t.Fatalf("expected at least a 12-byte CU header, got %d bytes", len(info))
	}
	unitLength := binary.LittleEndian.Uint32(info[0:4])
	if int(unitLength) != len(info)-4 {
		t.Fatalf("unit_length = %d, want %d", unitLength, len(info)-4)
	}
	version := binary.LittleEndian.Uint16(info[4:6])
	if version != dwVersion5 {
		t.Fatalf("version = %d, want %d", version, dwVersion5)
	}
	addressSize := info[7]
	if addressSize != 8 {
		t.Fatalf("address_size = %d, want 8", addressSize)
	}
}

func TestBaseTypesAreDeduplicated(t *testing.T) {
	b := NewBuilder(types.NewTypeInfo(), 2)
	d1 := b.GetType(types.Type{Kind: types.Int, Signed: true})
	d2 := b.GetType(types.Type{Kind: types.Int, Signed: true})
	if d1 != d2 {
		t.Fatal("expected the same Int type to be cached and reused")
	}

	d3 := b.GetType(types.Type{Kind: types.Int, Signed: false})
	if d1 == d3 {
		t.Fatal("signed and unsigned int must not share a DIE")
	}
}

func TestIntegerBaseTypesUseDwarfSpellings(t *testing.T) {
	b := NewBuilder(types.NewTypeInfo(), 2)
	b.GetType(types.Type{Kind: types.Short, Signed: true})
	b.GetType(types.Type{Kind: types.Int, Signed: false})
	b.GetType(types.Type{Kind: types.Long, Signed: true})

	_, _, str := b.Sections(8)
	for _, want := range []string{"int16_t", "uint32_t", "int64_t"} {
		if !bytes.Contains(str, []byte(want)) {
			t.Fatalf(".debug_str missing expected base type name %q", want)
		}
	}
}

func TestStructWithPointerToSelfDoesNotRecurseForever(t *testing.T) {
	info := types.NewTypeInfo()
	selfPtr := types.Type{Kind: types.Pointer, Inner: &types.Type{Kind: types.Struct, ID: "Node"}}
	info.Structs["Node"] = &types.StructType{
		Name:    "Node",
		Members: []types.DataMember{types.BasicMember("next", selfPtr)},
	}

	b := NewBuilder(info, 2)
	d := b.GetType(types.Type{Kind: types.Struct, ID: "Node"})
	if d == nil {
		t.Fatal("expected a struct DIE")
	}

	_, info2, str := b.Sections(8)
	if len(info2) == 0 {
		t.Fatal("expected non-empty .debug_info")
	}
	if !bytes.Contains(str, []byte("Node")) {
		t.Fatal("expected struct name in .debug_str")
	}
}

func TestStructMemberOffsetsAlignUpToFieldSize(t *testing.T) {
	info := types.NewTypeInfo()
	info.Structs["Packed"] = &types.StructType{
		Name: "Packed",
		Members: []types.DataMember{
			types.BasicMember("a", types.Type{Kind: types.Char, Signed: true}),
			types.BasicMember("b", types.Type{Kind: types.Int, Signed: true}),
		},
	}

	b := NewBuilder(info, 2)
	d := b.GetType(types.Type{Kind: types.Struct, ID: "Packed"})

	var memberOffsets []uint64
	for _, child := range d.children {
		if child.tag != dwTagMember {
			continue
		}
		for _, a := range child.attrs {
			if a.name == dwAtDataMemberLoc {
				memberOffsets = append(memberOffsets, a.num)
			}
		}
	}
	if len(memberOffsets) != 2 {
		t.Fatalf("expected 2 member offsets, got %d: %v", len(memberOffsets), memberOffsets)
	}
	if memberOffsets[0] != 0 {
		t.Fatalf("first member offset = %d, want 0", memberOffsets[0])
	}
	if memberOffsets[1] != 4 {
		t.Fatalf("second member offset = %d, want 4 (aligned up from 1)", memberOffsets[1])
	}
}

func TestPolymorphicStructGetsVTableField(t *testing.T) {
	info := types.NewTypeInfo()
	info.Structs["Base"] = &types.StructType{
		Name:           "Base",
		VirtualMethods: []types.Method{{Name: "f", Type: types.NewFunctionType(nil, types.Type{Kind: types.Void})}},
	}

	b := NewBuilder(info, 2)
	d := b.GetType(types.Type{Kind: types.Struct, ID: "Base"})

	var foundVptr bool
	for _, child := range d.children {
		if child.tag == dwTagMember {
			for _, a := range child.attrs {
				if a.form == dwFormStrp && a.str == vtableFieldName() {
					foundVptr = true
				}
			}
		}
	}
	if !foundVptr {
		t.Fatal("expected a synthetic vtable pointer member on a polymorphic base struct")
	}
}

func TestAddFunctionSymbolUsesAddrDirectlyAsLowPc(t *testing.T) {
	b := NewBuilder(types.NewTypeInfo(), 2)
	sym := resolve.FunctionSymbol{
		Name: "DoThing",
		Type: types.NewFunctionType([]types.Type{{Kind: types.Int, Signed: true}}, types.Type{Kind: types.Void}),
		Addr: 0x140001000,
	}
	b.AddFunctionSymbol(sym)

	var found *die
	for _, child := range b.cu.children {
		if child.tag == dwTagSubprogram {
			found = child
		}
	}
	if found == nil {
		t.Fatal("expected a subprogram DIE")
	}
	var lowPC uint64
	for _, a := range found.attrs {
		if a.name == dwAtLowPc {
			lowPC = a.num
		}
	}
	if lowPC != 0x140001000 {
		t.Fatalf("low_pc = %#x, want %#x", lowPC, 0x140001000)
	}
}
