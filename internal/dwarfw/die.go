package dwarfw

// die is one Debug Information Entry, built as an in-memory tree before
// being serialized into .debug_abbrev/.debug_info/.debug_str.
type die struct {
	tag      uint64
	hasKids  bool
	attrs    []dieAttr
	children []*die

	// offset is filled in once the entry is written to the .debug_info
	// buffer; a DW_FORM_ref4 attribute pointing at a die not yet written
	// is patched in afterwards using this value.
	offset uint32
}

type dieAttr struct {
	name uint64
	form uint64
	// exactly one of these is used, selected by form.
	str    string
	num    uint64
	snum   int64
	ref    *die
	flag   bool
}

func newDie(tag uint64, hasKids bool) *die {
	return &die{tag: tag, hasKids: hasKids}
}

func (d *die) addChild(child *die) *die {
	d.children = append(d.children, child)
	d.hasKids = true
	return child
}

func (d *die) strp(at uint64, s string) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormStrp, str: s})
}

func (d *die) data1(at uint64, v uint64) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormData1, num: v})
}

func (d *die) data2(at uint64, v uint64) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormData2, num: v})
}

func (d *die) data4(at uint64, v uint64) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormData4, num: v})
}

func (d *die) data8(at uint64, v uint64) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormData8, num: v})
}

func (d *die) udata(at uint64, v uint64) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormUdata, num: v})
}

func (d *die) sdata(at uint64, v int64) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormSdata, snum: v})
}

func (d *die) addr(at uint64, v uint64) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormAddr, num: v})
}

func (d *die) flagPresent(at uint64) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormFlagPres})
}

func (d *die) flag(at uint64, v bool) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormFlag, flag: v})
}

func (d *die) ref(at uint64, target *die) {
	d.attrs = append(d.attrs, dieAttr{name: at, form: dwFormRef4, ref: target})
}

// abbrevKey identifies an abbreviation declaration: every die sharing the
// same tag, child flag, and attribute (name, form) sequence can reuse one
// abbreviation code.
type abbrevKey struct {
	tag     uint64
	hasKids bool
	specs   string // encoded (name,form) pairs
}

func specsKey(attrs []dieAttr) string {
	b := make([]byte, 0, len(attrs)*2)
	for _, a := range attrs {
		b = uleb128(b, a.name)
		b = uleb128(b, a.form)
	}
	return string(b)
}

// section is a named serializer for one of .debug_abbrev/.debug_info/.debug_str.
type section struct {
	name string
	data []byte
}

// stringTable deduplicates strings written to .debug_str, since a writer
// producing many function/type names benefits from not repeating common
// substrings like "int" or "this".
type stringTable struct {
	data    []byte
	offsets map[string]uint32
}

func newStringTable() *stringTable {
	return &stringTable{offsets: make(map[string]uint32)}
}

func (s *stringTable) intern(str string) uint32 {
	if off, ok := s.offsets[str]; ok {
		return off
	}
	off := uint32(len(s.data))
	s.data = append(s.data, []byte(str)...)
	s.data = append(s.data, 0)
	s.offsets[str] = off
	return off
}

type refFixup struct {
	pos    int
	target *die
}

// serializer assembles the abbreviation table and the .debug_info/.debug_str
// bytes for a single compile unit rooted at one die.
type serializer struct {
	abbrevOrder     []abbrevKey
	abbrevCodeCache map[abbrevKey]uint64
	abbrevAttrs     map[abbrevKey][]dieAttr

	info   []byte
	strs   *stringTable
	fixups []refFixup
}

func newSerializer() *serializer {
	return &serializer{
		abbrevCodeCache: make(map[abbrevKey]uint64),
		abbrevAttrs:     make(map[abbrevKey][]dieAttr),
		strs:            newStringTable(),
	}
}

// codeFor returns the abbreviation code for d, registering a new
// abbreviation declaration the first time this (tag, children, attrs)
// combination is seen.
func (s *serializer) codeFor(d *die) uint64 {
	key := abbrevKey{tag: d.tag, hasKids: d.hasKids, specs: specsKey(d.attrs)}
	if code, ok := s.abbrevCodeByKey(key); ok {
		return code
	}
	code := uint64(len(s.abbrevOrder)) + 1
	s.abbrevOrder = append(s.abbrevOrder, key)
	s.abbrevAttrs[key] = d.attrs
	s.abbrevCodeCache[key] = code
	return code
}

// abbrevCodeByKey looks up an already-registered abbreviation.
func (s *serializer) abbrevCodeByKey(key abbrevKey) (uint64, bool) {
	code, ok := s.abbrevCodeCache[key]
	return code, ok
}
