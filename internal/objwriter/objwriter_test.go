package objwriter_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/jac3km4/zoltan/internal/objwriter"
)

func TestWriteProducesValidELFHeader(t *testing.T) {
	var buf bytes.Buffer
	sections := []objwriter.Section{
		{Name: ".debug_info", Data: []byte{1, 2, 3, 4}},
		{Name: ".debug_abbrev", Data: []byte{5, 6}},
		{Name: ".debug_str", Data: []byte("hello\x00")},
	}
	if err := objwriter.Write(&buf, objwriter.MachineX86_64, sections); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data := buf.Bytes()
	if len(data) < 64 {
		t.Fatalf("object too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[0:4], []byte{0x7f, 'E', 'L', 'F'}) {
		t.Fatal("missing ELF magic")
	}
	if data[4] != 2 {
		t.Fatalf("EI_CLASS = %d, want ELFCLASS64 (2)", data[4])
	}

	eType := binary.LittleEndian.Uint16(data[16:18])
	if eType != 1 {
		t.Fatalf("e_type = %d, want ET_REL (1)", eType)
	}

	eMachine := binary.LittleEndian.Uint16(data[18:20])
	if eMachine != 62 {
		t.Fatalf("e_machine = %d, want EM_X86_64 (62)", eMachine)
	}

	phnum := binary.LittleEndian.Uint16(data[56:58])
	if phnum != 1 {
		t.Fatalf("e_phnum = %d, want 1", phnum)
	}

	shnum := binary.LittleEndian.Uint16(data[60:62])
	// NULL + 3 data sections + .shstrtab
	if shnum != 5 {
		t.Fatalf("e_shnum = %d, want 5", shnum)
	}
}

func TestWriteContainsSectionData(t *testing.T) {
	var buf bytes.Buffer
	sections := []objwriter.Section{
		{Name: ".debug_info", Data: []byte("some debug info bytes")},
	}
	if err := objwriter.Write(&buf, objwriter.MachineX86_64, sections); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("some debug info bytes")) {
		t.Fatal("expected section data to be embedded in the object")
	}
	if !bytes.Contains(buf.Bytes(), []byte(".debug_info\x00")) {
		t.Fatal("expected section name in .shstrtab")
	}
}

func TestWriteI386UsesCorrectMachine(t *testing.T) {
	var buf bytes.Buffer
	if err := objwriter.Write(&buf, objwriter.MachineI386, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	eMachine := binary.LittleEndian.Uint16(buf.Bytes()[18:20])
	if eMachine != 3 {
		t.Fatalf("e_machine = %d, want EM_386 (3)", eMachine)
	}
}
