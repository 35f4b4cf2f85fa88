// Package resolve turns a set of FunctionSpecs into concrete
// FunctionSymbols by searching an executable image for each spec's
// pattern, picking the right match when more than one is expected, and
// computing the function's final address.
package resolve

import (
	"github.com/jac3km4/zoltan/internal/exeview"
	"github.com/jac3km4/zoltan/internal/eval"
	"github.com/jac3km4/zoltan/internal/pattern"
	"github.com/jac3km4/zoltan/internal/search"
	"github.com/jac3km4/zoltan/internal/spec"
	"github.com/jac3km4/zoltan/internal/types"
	"github.com/jac3km4/zoltan/internal/zerr"
)

// Target is one function to resolve: its spec (how to find it) paired
// with the function type recovered from its typedef signature.
type Target struct {
	Spec *spec.FunctionSpec
	Type *types.FunctionType
}

// FunctionSymbol is a fully resolved function: a name, its recovered
// signature, and the address the symbol's DW_AT_low_pc should use.
type FunctionSymbol struct {
	Name string
	Type *types.FunctionType
	Addr int64
}

// Resolve searches view for every target's pattern and returns the
// resulting symbols. A target that fails to resolve (no match, too many
// matches, a match count mismatch) does not abort the run: its error is
// collected and returned alongside the symbols that did resolve.
func Resolve(targets []Target, view *exeview.View) ([]FunctionSymbol, []error) {
	patterns := make([]*pattern.Pattern, len(targets))
	for i, t := range targets {
		patterns[i] = t.Spec.Pattern
	}

	matches := search.MultiSearch(patterns, view.Text.Data)
	buckets := make([][]search.Match, len(targets))
	for _, m := range matches {
		buckets[m.PatternIndex] = append(buckets[m.PatternIndex], m)
	}
	// matches come out of MultiSearch already ordered by hit position,
	// which for a haystack restricted to one section is address order.
	for i := range buckets {
		for j := range buckets[i] {
			buckets[i][j].RVA += int(view.Text.VirtualAddress)
		}
	}

	var symbols []FunctionSymbol
	var errs []error

	for i, target := range targets {
		sym, err := resolveOne(target, buckets[i], view)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		symbols = append(symbols, *sym)
	}

	return symbols, errs
}

func resolveOne(target Target, matches []search.Match, view *exeview.View) (*FunctionSymbol, error) {
	name := target.Spec.Name

	var chosen search.Match
	if target.Spec.Index != nil {
		idx := target.Spec.Index
		if len(matches) != idx.Total {
			return nil, zerr.New(zerr.CountMismatch, "unexpected number of matches for function", name, len(matches), idx.Total)
		}
		if idx.N < 0 || idx.N >= len(matches) {
			return nil, zerr.New(zerr.NotEnoughMatches, "nth specifier out of range for function", name, idx.N, len(matches))
		}
		chosen = matches[idx.N]
	} else {
		switch len(matches) {
		case 0:
			return nil, zerr.New(zerr.NoMatches, "no matches found for function", name)
		case 1:
			chosen = matches[0]
		default:
			return nil, zerr.New(zerr.MoreThanOneMatch, "more than one match found for function", name, len(matches))
		}
	}

	base := chosen.RVA
	if target.Spec.Offset != nil {
		base -= *target.Spec.Offset
	}

	var addr int64
	if target.Spec.Eval != nil {
		ctx, err := buildEvalContext(target.Spec, chosen, view)
		if err != nil {
			return nil, err
		}
		addr, err = eval.Eval(target.Spec.Eval, ctx)
		if err != nil {
			return nil, zerr.New(zerr.InvalidAccess, "failed to evaluate eval expression for function", name, err)
		}
	} else {
		addr = view.RVAToVA(int64(base))
	}

	return &FunctionSymbol{Name: name, Type: target.Type, Addr: addr}, nil
}

func buildEvalContext(fs *spec.FunctionSpec, match search.Match, view *exeview.View) (*eval.Context, error) {
	bindings := make(map[string]int64)
	for _, g := range fs.Pattern.Groups() {
		groupRVA := int64(match.RVA) + int64(g.ByteOffset)
		resolved, err := view.ResolveRelText(groupRVA)
		if err != nil {
			return nil, zerr.New(zerr.InvalidAccess, "failed to resolve capture group for function", fs.Name, g.Name, err)
		}
		bindings[g.Name] = resolved
	}
	return &eval.Context{Bindings: bindings, Mem: view}, nil
}
