// Package header scans an annotated C/C++ header for the constructs this
// tool understands: struct/union/enum layouts, and "typedef"-declared
// function pointer types carrying a "///@..." spec comment.
//
// This is deliberately not a C++ parser: recognizing arbitrary C++ is out
// of scope for this tool (a real compiler front end is the right tool for
// that job, and is expected to run upstream of this one). The scanner
// instead recognizes the narrow subset of declaration syntax that the
// rest of the pipeline actually needs: simple aggregate layouts and
// function-pointer typedefs, each on lines matching a small set of
// patterns. Anything else in the header is skipped.
package header

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jac3km4/zoltan/internal/resolve"
	"github.com/jac3km4/zoltan/internal/spec"
	"github.com/jac3km4/zoltan/internal/types"
	"github.com/jac3km4/zoltan/internal/zerr"
)

// Result is everything recovered from a scanned header.
type Result struct {
	Info    *types.TypeInfo
	Targets []resolve.Target
}

var (
	structRe   = regexp.MustCompile(`^(?:struct|class)\s+(\w+)(?:\s*:\s*(?:public\s+)?(\w+))?\s*\{\s*$`)
	unionRe    = regexp.MustCompile(`^union\s+(\w+)\s*\{\s*$`)
	enumRe     = regexp.MustCompile(`^enum(?:\s+class)?\s+(\w+)\s*\{\s*$`)
	memberRe   = regexp.MustCompile(`^(.+[\s*&])(\w+)\s*;\s*$`)
	virtualRe  = regexp.MustCompile(`^virtual\s+([\w:\s*&]+?)\s+(\w+)\s*\(([^)]*)\)\s*(?:=\s*0\s*)?;\s*$`)
	enumMemRe  = regexp.MustCompile(`^(\w+)(?:\s*=\s*(-?\d+))?,?\s*$`)
	typedefRe  = regexp.MustCompile(`^typedef\s+([\w:\s*&]+?)\s*\(\s*\*\s*(\w+)\s*\)\s*\(([^)]*)\)\s*;\s*$`)
	closeRe    = regexp.MustCompile(`^\}\s*;\s*$`)
)

// Scan parses src line by line.
func Scan(src string) (*Result, error) {
	info := types.NewTypeInfo()
	var targets []resolve.Target
	var pendingComment []string

	lines := strings.Split(src, "\n")
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "///"):
			pendingComment = append(pendingComment, line)
			continue
		case strings.HasPrefix(line, "//"):
			continue
		}

		switch {
		case structRe.MatchString(line):
			m := structRe.FindStringSubmatch(line)
			st, next, err := parseStruct(lines, i+1, m[1], m[2], info)
			if err != nil {
				return nil, err
			}
			info.Structs[m[1]] = st
			i = next
		case unionRe.MatchString(line):
			m := unionRe.FindStringSubmatch(line)
			u, next, err := parseUnion(lines, i+1, m[1], info)
			if err != nil {
				return nil, err
			}
			info.Unions[m[1]] = u
			i = next
		case enumRe.MatchString(line):
			m := enumRe.FindStringSubmatch(line)
			e, next, err := parseEnum(lines, i+1, m[1])
			if err != nil {
				return nil, err
			}
			info.Enums[m[1]] = e
			i = next
		case typedefRe.MatchString(line):
			m := typedefRe.FindStringSubmatch(line)
			fs, err := spec.New(m[2], pendingComment)
			if err != nil {
				return nil, err
			}
			if fs != nil {
				ret, err := parseType(m[1], info)
				if err != nil {
					return nil, err
				}
				params, err := parseParamList(m[3], info)
				if err != nil {
					return nil, err
				}
				targets = append(targets, resolve.Target{
					Spec: fs,
					Type: types.NewFunctionType(params, ret),
				})
			}
		}

		pendingComment = nil
	}

	return &Result{Info: info, Targets: targets}, nil
}

func parseStruct(lines []string, start int, name string, base string, info *types.TypeInfo) (*types.StructType, int, error) {
	st := &types.StructType{Name: name}
	if base != "" {
		st.Base = &base
	}

	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if closeRe.MatchString(line) {
			return st, i, nil
		}
		if m := virtualRe.FindStringSubmatch(line); m != nil {
			ret, err := parseType(m[1], info)
			if err != nil {
				return nil, 0, err
			}
			params, err := parseParamList(m[3], info)
			if err != nil {
				return nil, 0, err
			}
			st.VirtualMethods = append(st.VirtualMethods, types.Method{
				Name: m[2],
				Type: types.NewFunctionType(params, ret),
			})
			continue
		}
		if m := memberRe.FindStringSubmatch(line); m != nil {
			typ, err := parseType(strings.TrimSpace(m[1]), info)
			if err != nil {
				return nil, 0, err
			}
			st.Members = append(st.Members, types.BasicMember(m[2], typ))
			continue
		}
		return nil, 0, zerr.New(zerr.UnexpectedKind, "unrecognized line inside struct", name, line)
	}
	return nil, 0, zerr.New(zerr.UnexpectedKind, "unterminated struct", name)
}

func parseUnion(lines []string, start int, name string, info *types.TypeInfo) (*types.UnionType, int, error) {
	u := &types.UnionType{Name: name}
	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if closeRe.MatchString(line) {
			return u, i, nil
		}
		m := memberRe.FindStringSubmatch(line)
		if m == nil {
			return nil, 0, zerr.New(zerr.UnexpectedKind, "unrecognized line inside union", name, line)
		}
		typ, err := parseType(strings.TrimSpace(m[1]), info)
		if err != nil {
			return nil, 0, err
		}
		u.Members = append(u.Members, types.BasicMember(m[2], typ))
	}
	return nil, 0, zerr.New(zerr.UnexpectedKind, "unterminated union", name)
}

func parseEnum(lines []string, start int, name string) (*types.EnumType, int, error) {
	e := &types.EnumType{Name: name}
	next := int64(0)
	for i := start; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if closeRe.MatchString(line) {
			return e, i, nil
		}
		line = strings.TrimSuffix(line, ",")
		m := enumMemRe.FindStringSubmatch(line + ",")
		if m == nil {
			return nil, 0, zerr.New(zerr.UnexpectedKind, "unrecognized line inside enum", name, line)
		}
		val := next
		if m[2] != "" {
			n, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil {
				return nil, 0, zerr.New(zerr.ParamParse, "invalid enumerator value", name, m[1], err)
			}
			val = n
		}
		e.Members = append(e.Members, types.EnumMember{Name: m[1], Value: val})
		next = val + 1
	}
	return nil, 0, zerr.New(zerr.UnexpectedKind, "unterminated enum", name)
}

func parseParamList(s string, info *types.TypeInfo) ([]types.Type, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "void" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	params := make([]types.Type, 0, len(parts))
	for _, p := range parts {
		typ, err := parseType(stripParamName(p), info)
		if err != nil {
			return nil, err
		}
		params = append(params, typ)
	}
	return params, nil
}

// stripParamName drops a parameter's trailing name ("int a" -> "int",
// "float* b" -> "float*"), leaving a bare type expression for parseType.
// A single-token parameter ("int") is assumed unnamed and returned as-is.
func stripParamName(p string) string {
	fields := strings.Fields(p)
	if len(fields) <= 1 {
		return strings.TrimSpace(p)
	}
	return strings.Join(fields[:len(fields)-1], " ")
}

// parseType parses a simple C type expression: a base keyword or
// aggregate name, followed by any number of trailing "*"/"&" suffixes.
func parseType(s string, info *types.TypeInfo) (types.Type, error) {
	s = strings.TrimSpace(s)

	var suffixes []byte
	for len(s) > 0 {
		last := s[len(s)-1]
		if last == '*' || last == '&' {
			suffixes = append(suffixes, last)
			s = strings.TrimSpace(s[:len(s)-1])
			continue
		}
		break
	}

	base, err := parseBaseType(s, info)
	if err != nil {
		return types.Type{}, err
	}

	// suffixes were collected innermost-last (closest to the name first);
	// apply them in reverse so "int**" wraps as Pointer(Pointer(Int)).
	for i := len(suffixes) - 1; i >= 0; i-- {
		inner := base
		if suffixes[i] == '*' {
			base = types.Type{Kind: types.Pointer, Inner: &inner}
		} else {
			base = types.Type{Kind: types.Reference, Inner: &inner}
		}
	}
	return base, nil
}

func parseBaseType(s string, info *types.TypeInfo) (types.Type, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "const ")
	fields := strings.Fields(s)

	signed := true
	var kindWords []string
	for _, f := range fields {
		switch f {
		case "unsigned":
			signed = false
		case "signed":
			signed = true
		case "struct", "class", "union", "enum":
			// keyword before an aggregate name; skip it.
		default:
			kindWords = append(kindWords, f)
		}
	}
	joined := strings.Join(kindWords, " ")

	switch joined {
	case "void":
		return types.Type{Kind: types.Void}, nil
	case "bool":
		return types.Type{Kind: types.Bool}, nil
	case "char":
		return types.Type{Kind: types.Char, Signed: signed}, nil
	case "wchar_t":
		return types.Type{Kind: types.WChar}, nil
	case "short", "short int":
		return types.Type{Kind: types.Short, Signed: signed}, nil
	case "int":
		return types.Type{Kind: types.Int, Signed: signed}, nil
	case "long", "long int", "long long", "long long int":
		return types.Type{Kind: types.Long, Signed: signed}, nil
	case "float":
		return types.Type{Kind: types.Float}, nil
	case "double":
		return types.Type{Kind: types.Double}, nil
	}

	if info == nil {
		// without an aggregate registry to look the name up in, treat it
		// as a stub struct reference.
		return types.Type{Kind: types.Struct, ID: joined}, nil
	}
	if _, ok := info.Structs[joined]; ok {
		return types.Type{Kind: types.Struct, ID: joined}, nil
	}
	if _, ok := info.Unions[joined]; ok {
		return types.Type{Kind: types.Union, ID: joined}, nil
	}
	if _, ok := info.Enums[joined]; ok {
		return types.Type{Kind: types.Enum, ID: joined}, nil
	}
	// a forward reference to an aggregate declared later in the header.
	return types.Type{Kind: types.Struct, ID: joined}, nil
}
