package headerout_test

import (
	"strings"
	"testing"

	"github.com/jac3km4/zoltan/internal/headerout"
	"github.com/jac3km4/zoltan/internal/resolve"
	"github.com/jac3km4/zoltan/internal/zigtest"
)

func TestWriteCEmitsSortedMacros(t *testing.T) {
	symbols := []resolve.FunctionSymbol{
		{Name: "Zeta", Addr: 0x1000},
		{Name: "Alpha", Addr: 0x2000},
	}
	out := headerout.WriteC(symbols)

	zigtest.ExpectEquality(t, strings.Contains(out, "#define ALPHA_ADDR 0x2000ULL"), true)
	zigtest.ExpectEquality(t, strings.Contains(out, "#define ZETA_ADDR 0x1000ULL"), true)

	alphaIdx := strings.Index(out, "ALPHA_ADDR")
	zetaIdx := strings.Index(out, "ZETA_ADDR")
	zigtest.ExpectEquality(t, alphaIdx < zetaIdx, true)
}

func TestWriteRustEmitsConstants(t *testing.T) {
	symbols := []resolve.FunctionSymbol{{Name: "DoThing", Addr: 0x140001000}}
	out := headerout.WriteRust(symbols)
	zigtest.ExpectEquality(t, strings.Contains(out, "pub const DOTHING_ADDR: usize = 0x140001000;"), true)
}
