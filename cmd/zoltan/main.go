// Command zoltan recovers symbol information for functions in a stripped
// x86-64 binary by matching byte-pattern signatures against its code
// section, and emits the results as DWARF 5 debug information plus
// optional C/Rust address headers.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/jac3km4/zoltan/internal/app"
)

// repeatableFlag collects every occurrence of a flag.Value-backed flag
// ("-f" may be given more than once), the way the teacher's flag sets
// accumulate repeatable arguments into a slice.
type repeatableFlag struct {
	values *[]string
}

func (r repeatableFlag) String() string {
	if r.values == nil {
		return ""
	}
	return strings.Join(*r.values, ",")
}

func (r repeatableFlag) Set(s string) error {
	if !strings.HasPrefix(s, "-") {
		s = "-" + s
	}
	*r.values = append(*r.values, s)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts app.Opts

	flgs := flag.NewFlagSet("zoltan", flag.ContinueOnError)
	flgs.StringVar(&opts.DWARFOutput, "dwarf-output", "", "path to write the DWARF symbol object")
	flgs.StringVar(&opts.DWARFOutput, "o", "", "shorthand for --dwarf-output")
	flgs.StringVar(&opts.COutput, "c-output", "", "path to write a C header of address macros")
	flgs.StringVar(&opts.RustOutput, "rust-output", "", "path to write a Rust module of address constants")
	flgs.BoolVar(&opts.StripNamespaces, "strip-namespaces", false, "omit namespace qualifiers from aggregate names")
	flgs.BoolVar(&opts.EagerTypeExport, "eager-type-export", false, "export every aggregate found in the source, not just reachable ones")

	compilerFlag := repeatableFlag{values: &opts.CompilerFlags}
	flgs.Var(compilerFlag, "compiler-flag", "flag to forward to the C/C++ parser (repeatable)")
	flgs.Var(compilerFlag, "f", "shorthand for --compiler-flag")

	if err := flgs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	rest := flgs.Args()
	if len(rest) != 2 {
		fmt.Fprintln(os.Stderr, "zoltan: usage: zoltan [flags] SOURCE EXE")
		return 1
	}
	opts.Source, opts.Exe = rest[0], rest[1]

	if err := app.Run(opts); err != nil {
		fmt.Fprintln(os.Stderr, app.SummarizeError(err))
		app.Log.Tail(os.Stderr, 10)
		return 1
	}
	return 0
}
