// Package objwriter assembles a set of raw section byte buffers (the
// .debug_info/.debug_abbrev/.debug_str trio dwarfw produces) into a
// standalone ELF64 object file, the container zoltan emits its recovered
// debug information in.
//
// The object carries no program code of its own: its only job is to hold
// DWARF sections somewhere a consumer (a debugger, or another instance of
// this tool reading its own prior output) can find them by name. A single
// PT_LOAD segment spans the whole file so tools that map the object by
// segment, rather than by section, still see the DWARF data.
package objwriter

import (
	"encoding/binary"
	"io"

	"github.com/jac3km4/zoltan/internal/zerr"
)

const (
	elfClass64   = 2
	elfDataLSB   = 1
	elfVersion   = 1
	elfOSABINone = 0

	etRel = 1

	emX86_64 = 62
	em386    = 3

	shtNull     = 0
	shtProgbits = 1
	shtStrtab   = 3

	ptLoad = 1

	sectionAlign = 8
)

// Section is one named chunk of debug data to embed.
type Section struct {
	Name string
	Data []byte
}

// Machine selects the e_machine value written to the ELF header.
type Machine int

const (
	MachineX86_64 Machine = iota
	MachineI386
)

// Write assembles sections into a relocatable ELF object and writes it to
// w.
func Write(w io.Writer, machine Machine, sections []Section) error {
	named := append([]Section{{}}, sections...) // index 0 is the NULL section
	shstrtab, nameOffsets := buildStringTable(sectionNames(named))

	const ehSize = 64
	const phEntSize = 56
	const shEntSize = 64

	numSections := len(named) + 1 // plus .shstrtab itself
	shstrtabIndex := numSections - 1

	phoff := uint64(ehSize)
	dataOffset := phoff + phEntSize
	type placed struct {
		offset uint64
		size   uint64
	}
	offsets := make([]placed, len(named))

	for i, s := range named {
		if i == 0 {
			continue
		}
		dataOffset = align(dataOffset, sectionAlign)
		offsets[i] = placed{offset: dataOffset, size: uint64(len(s.Data))}
		dataOffset += uint64(len(s.Data))
	}
	dataOffset = align(dataOffset, sectionAlign)
	shstrtabOffset := dataOffset
	dataOffset += uint64(len(shstrtab))

	shoff := align(dataOffset, 8)
	fileSize := shoff + uint64(numSections)*shEntSize

	buf := make([]byte, 0, fileSize)

	buf = appendELFHeader(buf, machine, phoff, shoff, uint16(numSections), uint16(shstrtabIndex))
	buf = appendProgramHeader(buf, fileSize)

	for i, s := range named {
		if i == 0 {
			continue
		}
		buf = padTo(buf, offsets[i].offset)
		buf = append(buf, s.Data...)
	}
	buf = padTo(buf, shstrtabOffset)
	buf = append(buf, shstrtab...)
	buf = padTo(buf, shoff)

	// NULL section header
	buf = appendSectionHeader(buf, 0, shtNull, 0, 0, 0, 0)

	for i, s := range named {
		if i == 0 {
			continue
		}
		buf = appendSectionHeader(buf, nameOffsets[s.Name], shtProgbits, offsets[i].offset, offsets[i].size, sectionAlign, 0)
	}

	buf = appendSectionHeader(buf, nameOffsets[".shstrtab"], shtStrtab, shstrtabOffset, uint64(len(shstrtab)), 1, 0)

	if _, err := w.Write(buf); err != nil {
		return zerr.New(zerr.OutputError, "failed to write ELF object", err)
	}
	return nil
}

func sectionNames(sections []Section) []string {
	names := make([]string, 0, len(sections)+1)
	for i, s := range sections {
		if i == 0 {
			continue
		}
		names = append(names, s.Name)
	}
	names = append(names, ".shstrtab")
	return names
}

// buildStringTable returns the section-header string table bytes (a
// leading NUL, then each name NUL-terminated) and the byte offset of each
// name within it.
func buildStringTable(names []string) ([]byte, map[string]uint32) {
	table := []byte{0}
	offsets := make(map[string]uint32, len(names))
	for _, name := range names {
		if _, ok := offsets[name]; ok {
			continue
		}
		offsets[name] = uint32(len(table))
		table = append(table, []byte(name)...)
		table = append(table, 0)
	}
	return table, offsets
}

func align(v uint64, to uint64) uint64 {
	if rem := v % to; rem != 0 {
		return v + (to - rem)
	}
	return v
}

func padTo(buf []byte, target uint64) []byte {
	for uint64(len(buf)) < target {
		buf = append(buf, 0)
	}
	return buf
}

func appendELFHeader(buf []byte, machine Machine, phoff, shoff uint64, shnum, shstrndx uint16) []byte {
	var ident [16]byte
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = elfClass64
	ident[5] = elfDataLSB
	ident[6] = elfVersion
	ident[7] = elfOSABINone

	buf = append(buf, ident[:]...)
	buf = appendU16(buf, etRel)

	var machineValue uint16 = emX86_64
	if machine == MachineI386 {
		machineValue = em386
	}
	buf = appendU16(buf, machineValue)
	buf = appendU32(buf, elfVersion)
	buf = appendU64(buf, 0) // e_entry
	buf = appendU64(buf, phoff)
	buf = appendU64(buf, shoff)
	buf = appendU32(buf, 0)     // e_flags
	buf = appendU16(buf, 64)    // e_ehsize
	buf = appendU16(buf, 56)    // e_phentsize
	buf = appendU16(buf, 1)     // e_phnum
	buf = appendU16(buf, 64)    // e_shentsize
	buf = appendU16(buf, shnum) // e_shnum
	buf = appendU16(buf, shstrndx)
	return buf
}

// appendProgramHeader appends a single PT_LOAD entry spanning the whole
// file, so a tool that maps this object by segment rather than by section
// still sees every embedded DWARF byte.
func appendProgramHeader(buf []byte, fileSize uint64) []byte {
	const pfRead = 0x4
	buf = appendU32(buf, ptLoad)
	buf = appendU32(buf, pfRead)
	buf = appendU64(buf, 0) // p_offset
	buf = appendU64(buf, 0) // p_vaddr
	buf = appendU64(buf, 0) // p_paddr
	buf = appendU64(buf, fileSize)
	buf = appendU64(buf, fileSize)
	buf = appendU64(buf, sectionAlign)
	return buf
}

func appendSectionHeader(buf []byte, nameOff uint32, shType uint32, offset, size, align uint64, flags uint64) []byte {
	buf = appendU32(buf, nameOff)
	buf = appendU32(buf, shType)
	buf = appendU64(buf, flags)
	buf = appendU64(buf, 0) // sh_addr
	buf = appendU64(buf, offset)
	buf = appendU64(buf, size)
	buf = appendU32(buf, 0) // sh_link
	buf = appendU32(buf, 0) // sh_info
	buf = appendU64(buf, align)
	buf = appendU64(buf, 0) // sh_entsize
	return buf
}

func appendU16(b []byte, v uint16) []byte {
	tmp := make([]byte, 2)
	binary.LittleEndian.PutUint16(tmp, v)
	return append(b, tmp...)
}

func appendU32(b []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp, v)
	return append(b, tmp...)
}

func appendU64(b []byte, v uint64) []byte {
	tmp := make([]byte, 8)
	binary.LittleEndian.PutUint64(tmp, v)
	return append(b, tmp...)
}
