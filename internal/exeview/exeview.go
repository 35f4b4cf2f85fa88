// Package exeview gives read-only access to the two sections of a PE
// executable the matcher and resolver need: the code (".text") and
// read-only data (".rdata") sections, plus the little-endian address
// arithmetic used to turn a captured relative displacement into an
// absolute virtual address.
package exeview

import (
	"debug/pe"
	"encoding/binary"
	"io"

	"github.com/jac3km4/zoltan/internal/zerr"
)

// Section is a single loaded section: its raw bytes and the virtual
// address its first byte is mapped to once the image is loaded.
type Section struct {
	Data          []byte
	VirtualAddress int64 // relative to the image base
}

func (s *Section) contains(rva int64, size int64) bool {
	return rva >= s.VirtualAddress && rva+size <= s.VirtualAddress+int64(len(s.Data))
}

func (s *Section) bytesAt(rva int64, size int64) []byte {
	start := rva - s.VirtualAddress
	return s.Data[start : start+size]
}

// View is a loaded executable: its code and data sections, and the
// properties needed to resolve an address (bitness, image base).
type View struct {
	Text      Section
	Rdata     Section
	ImageBase int64
	Is64Bit   bool
}

// Load reads the .text and .rdata sections of the PE executable at path.
func Load(path string) (*View, error) {
	f, err := pe.Open(path)
	if err != nil {
		return nil, zerr.New(zerr.ExecutableIO, "failed to open executable", path, err)
	}
	defer f.Close()

	view := &View{}
	switch opt := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		view.ImageBase = int64(opt.ImageBase)
		view.Is64Bit = false
	case *pe.OptionalHeader64:
		view.ImageBase = int64(opt.ImageBase)
		view.Is64Bit = true
	default:
		return nil, zerr.New(zerr.ExecutableIO, "unsupported or missing optional header", path)
	}

	text, err := loadSection(f, ".text")
	if err != nil {
		return nil, err
	}
	view.Text = *text

	rdata, err := loadSection(f, ".rdata")
	if err != nil {
		return nil, err
	}
	view.Rdata = *rdata

	return view, nil
}

func loadSection(f *pe.File, name string) (*Section, error) {
	sec := f.Section(name)
	if sec == nil {
		return nil, zerr.New(zerr.MissingSection, "executable is missing a required section", name)
	}
	data, err := sec.Data()
	if err != nil && err != io.EOF {
		return nil, zerr.New(zerr.ExecutableIO, "failed to read section data", name, err)
	}
	return &Section{Data: data, VirtualAddress: int64(sec.VirtualAddress)}, nil
}

// sectionFor returns whichever of Text/Rdata contains the given rva range.
func (v *View) sectionFor(rva int64, size int64) (*Section, error) {
	if v.Text.contains(rva, size) {
		return &v.Text, nil
	}
	if v.Rdata.contains(rva, size) {
		return &v.Rdata, nil
	}
	return nil, zerr.New(zerr.InvalidAccess, "address is outside of the loaded sections", rva)
}

// resolveRel reads the 4-byte little-endian displacement stored at rva and
// resolves it the way an x86 rel32 operand is resolved at runtime: relative
// to the address immediately following the 4-byte field.
func (v *View) resolveRel(rva int64) (int64, error) {
	sec, err := v.sectionFor(rva, 4)
	if err != nil {
		return 0, err
	}
	disp := int32(binary.LittleEndian.Uint32(sec.bytesAt(rva, 4)))
	return v.ImageBase + rva + 4 + int64(disp), nil
}

// ResolveRelText resolves a 4-byte relative displacement located at rva
// within the .text section.
func (v *View) ResolveRelText(rva int64) (int64, error) {
	if !v.Text.contains(rva, 4) {
		return 0, zerr.New(zerr.InvalidAccess, "rva is not within the .text section", rva)
	}
	return v.resolveRel(rva)
}

// ResolveRelRdata resolves a 4-byte relative displacement located at rva
// within the .rdata section.
func (v *View) ResolveRelRdata(rva int64) (int64, error) {
	if !v.Rdata.contains(rva, 4) {
		return 0, zerr.New(zerr.InvalidAccess, "rva is not within the .rdata section", rva)
	}
	return v.resolveRel(rva)
}

// PointerSize is 8 on the 64-bit images this module targets, 4 otherwise.
func (v *View) PointerSize() int64 {
	if v.Is64Bit {
		return 8
	}
	return 4
}

// ReadPointer reads a pointer-sized, little-endian value from the virtual
// address va. It implements eval.Memory, letting an eval expression
// dereference a captured address against the loaded image.
func (v *View) ReadPointer(va int64) (int64, error) {
	rva := va - v.ImageBase
	size := v.PointerSize()
	sec, err := v.sectionFor(rva, size)
	if err != nil {
		return 0, err
	}
	data := sec.bytesAt(rva, size)
	if size == 8 {
		return int64(binary.LittleEndian.Uint64(data)), nil
	}
	return int64(binary.LittleEndian.Uint32(data)), nil
}

// RVAToVA converts a section-relative address to an absolute virtual
// address.
func (v *View) RVAToVA(rva int64) int64 {
	return v.ImageBase + rva
}

// VAToRVA converts an absolute virtual address to a section-relative
// address.
func (v *View) VAToRVA(va int64) int64 {
	return va - v.ImageBase
}
