package dwarfw

import "encoding/binary"

// write serializes d and its children into s.info, recursively, and
// returns the offset at which d's abbreviation code byte was written
// (relative to the start of s.info, i.e. the first byte after the
// compile unit header).
func (s *serializer) write(d *die) uint32 {
	off := uint32(len(s.info))
	d.offset = off

	code := s.codeFor(d)
	s.info = uleb128(s.info, code)

	for _, a := range d.attrs {
		s.writeAttr(a)
	}

	if d.hasKids {
		for _, child := range d.children {
			s.write(child)
		}
		s.info = append(s.info, 0) // null entry terminates the sibling chain
	}

	return off
}

func (s *serializer) writeAttr(a dieAttr) {
	switch a.form {
	case dwFormStrp:
		off := s.strs.intern(a.str)
		s.info = appendU32(s.info, off)
	case dwFormData1:
		s.info = append(s.info, byte(a.num))
	case dwFormData2:
		s.info = appendU16(s.info, uint16(a.num))
	case dwFormData4:
		s.info = appendU32(s.info, uint32(a.num))
	case dwFormData8:
		s.info = appendU64(s.info, a.num)
	case dwFormUdata:
		s.info = uleb128(s.info, a.num)
	case dwFormSdata:
		s.info = sleb128(s.info, a.snum)
	case dwFormAddr:
		s.info = appendU64(s.info, a.num)
	case dwFormFlagPres:
		// no data: presence of the attribute is the value.
	case dwFormFlag:
		v := byte(0)
		if a.flag {
			v = 1
		}
		s.info = append(s.info, v)
	case dwFormRef4:
		s.fixups = append(s.fixups, refFixup{pos: len(s.info), target: a.ref})
		s.info = appendU32(s.info, 0)
	}
}

func appendU16(b []byte, v uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return append(b, buf...)
}

func appendU32(b []byte, v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return append(b, buf...)
}

func appendU64(b []byte, v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return append(b, buf...)
}

// finish applies every recorded ref4 fixup now that every die has a final
// offset, and builds the .debug_abbrev table for the abbreviations used.
func (s *serializer) finish() (abbrev, info, str []byte) {
	for _, fx := range s.fixups {
		binary.LittleEndian.PutUint32(s.info[fx.pos:fx.pos+4], fx.target.offset)
	}

	var ab []byte
	for i, key := range s.abbrevOrder {
		code := uint64(i) + 1
		ab = uleb128(ab, code)
		ab = uleb128(ab, key.tag)
		if key.hasKids {
			ab = append(ab, 1)
		} else {
			ab = append(ab, 0)
		}
		for _, a := range s.abbrevAttrs[key] {
			ab = uleb128(ab, a.name)
			ab = uleb128(ab, a.form)
		}
		ab = uleb128(ab, 0)
		ab = uleb128(ab, 0)
	}
	ab = uleb128(ab, 0) // terminate the abbreviation table

	return ab, s.info, s.strs.data
}

// buildCU wraps a serialized .debug_info body with its DWARF5 compile
// unit header: unit_length, version, unit_type, address_size,
// debug_abbrev_offset.
func buildCU(body []byte, addressSize byte) []byte {
	header := make([]byte, 0, 11)
	header = appendU16(header, dwVersion5)
	header = append(header, 1) // DW_UT_compile
	header = append(header, addressSize)
	header = appendU32(header, 0) // debug_abbrev_offset: single abbrev table at offset 0

	full := make([]byte, 0, 4+len(header)+len(body))
	full = appendU32(full, uint32(len(header)+len(body)))
	full = append(full, header...)
	full = append(full, body...)
	return full
}
