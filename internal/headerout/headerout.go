// Package headerout renders resolved function addresses as C and Rust
// header files, so a caller that can't link against the DWARF object
// directly (a script, a loader, another tool) still gets the recovered
// addresses as plain source constants.
package headerout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jac3km4/zoltan/internal/resolve"
)

// macroName derives the "<NAME>_ADDR" macro/constant identifier for a
// resolved symbol.
func macroName(sym resolve.FunctionSymbol) string {
	return strings.ToUpper(sym.Name) + "_ADDR"
}

// WriteC renders symbols as a C header of address macros.
func WriteC(symbols []resolve.FunctionSymbol) string {
	sorted := sortedByName(symbols)

	var b strings.Builder
	b.WriteString("#pragma once\n\n")
	for _, sym := range sorted {
		fmt.Fprintf(&b, "#define %s 0x%xULL\n", macroName(sym), uint64(sym.Addr))
	}
	return b.String()
}

// WriteRust renders symbols as a Rust module of address constants.
func WriteRust(symbols []resolve.FunctionSymbol) string {
	sorted := sortedByName(symbols)

	var b strings.Builder
	for _, sym := range sorted {
		fmt.Fprintf(&b, "pub const %s: usize = 0x%x;\n", macroName(sym), uint64(sym.Addr))
	}
	return b.String()
}

func sortedByName(symbols []resolve.FunctionSymbol) []resolve.FunctionSymbol {
	sorted := make([]resolve.FunctionSymbol, len(symbols))
	copy(sorted, symbols)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}
