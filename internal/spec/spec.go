// Package spec parses the "///@key value" comment lines attached to a C
// typedef into a FunctionSpec: the pattern to search for, and how to turn
// a match into a concrete function address and name.
package spec

import (
	"strconv"
	"strings"

	"github.com/jac3km4/zoltan/internal/eval"
	"github.com/jac3km4/zoltan/internal/pattern"
	"github.com/jac3km4/zoltan/internal/zerr"
)

// FunctionSpec is the resolved instruction for locating one function.
type FunctionSpec struct {
	Name    string
	Pattern *pattern.Pattern

	// Offset, if non-nil, is subtracted from the pattern's match address
	// (instead of using the match address directly) by the default address
	// rule. It has no effect when Eval is set: capture groups are resolved
	// relative to the unadjusted match.
	Offset *int

	// Eval, if non-nil, replaces the default "address of the match" rule
	// entirely: the function's address is whatever this expression
	// evaluates to.
	Eval *eval.Expr

	// Index selects which of several matches of Pattern to use, when more
	// than one match is expected (an "n/total" specifier).
	Index *IndexSpecifier
}

// IndexSpecifier selects the nth of an expected total count of matches.
type IndexSpecifier struct {
	N     int
	Total int
}

const annotationPrefix = "@"

// New builds a FunctionSpec for a typedef named name from its attached
// doc comment lines. It returns (nil, nil) if comment contains no
// "@"-prefixed parameter lines at all, since that means the typedef isn't
// one this tool is meant to resolve.
func New(name string, comment []string) (*FunctionSpec, error) {
	var params []string
	for _, line := range comment {
		p, ok := parseTypedefCommentLine(line)
		if ok {
			params = append(params, p)
		}
	}
	if len(params) == 0 {
		return nil, nil
	}

	fs := &FunctionSpec{Name: name}
	var patternSeen bool

	for _, param := range params {
		key, value, ok := strings.Cut(param, " ")
		if !ok {
			key, value = param, ""
		}
		value = strings.TrimSpace(value)

		switch key {
		case "pattern":
			p, err := pattern.Parse(value)
			if err != nil {
				return nil, zerr.New(zerr.PatternParse, "failed to parse pattern for function", name, err)
			}
			fs.Pattern = p
			patternSeen = true
		case "offset":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, zerr.New(zerr.ParamParse, "invalid offset value for function", name, err)
			}
			fs.Offset = &n
		case "eval":
			expr, err := eval.Parse(value)
			if err != nil {
				return nil, zerr.New(zerr.ExprParse, "failed to parse eval expression for function", name, err)
			}
			fs.Eval = expr
		case "nth":
			idx, err := parseIndexSpecifier(value)
			if err != nil {
				return nil, zerr.New(zerr.ParamParse, "invalid nth specifier for function", name, err)
			}
			fs.Index = idx
		default:
			return nil, zerr.New(zerr.UnknownParam, "unknown spec parameter for function", name, key)
		}
	}

	if !patternSeen {
		return nil, zerr.New(zerr.MissingPattern, "function spec is missing a pattern", name)
	}

	return fs, nil
}

// parseTypedefCommentLine strips the leading "///" doc-comment marker and
// any surrounding whitespace, then strips the "@" marker. ok is false if
// the line isn't an annotation line at all.
func parseTypedefCommentLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "///")
	trimmed = strings.TrimSpace(trimmed)
	if !strings.HasPrefix(trimmed, annotationPrefix) {
		return "", false
	}
	return strings.TrimPrefix(trimmed, annotationPrefix), true
}

// parseIndexSpecifier parses an "n/total" specifier, where n is a zero-based
// index, e.g. "2/3" for "the third of three expected matches".
func parseIndexSpecifier(s string) (*IndexSpecifier, error) {
	n, total, ok := strings.Cut(s, "/")
	if !ok {
		return nil, zerr.New(zerr.ParamParse, "expected an \"n/total\" specifier", s)
	}
	nVal, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return nil, zerr.New(zerr.ParamParse, "invalid index in nth specifier", s, err)
	}
	totalVal, err := strconv.Atoi(strings.TrimSpace(total))
	if err != nil {
		return nil, zerr.New(zerr.ParamParse, "invalid total in nth specifier", s, err)
	}
	return &IndexSpecifier{N: nVal, Total: totalVal}, nil
}
