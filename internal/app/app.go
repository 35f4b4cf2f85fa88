// Package app wires the symbol-recovery pipeline end to end: scan an
// annotated header, resolve its function specs against a target
// executable, and emit the requested DWARF/C/Rust outputs. cmd/zoltan's
// main() is a thin flag-parsing shell around Run.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/jac3km4/zoltan/internal/dwarfw"
	"github.com/jac3km4/zoltan/internal/exeview"
	"github.com/jac3km4/zoltan/internal/header"
	"github.com/jac3km4/zoltan/internal/headerout"
	"github.com/jac3km4/zoltan/internal/objwriter"
	"github.com/jac3km4/zoltan/internal/resolve"
	"github.com/jac3km4/zoltan/internal/types"
	"github.com/jac3km4/zoltan/internal/zerr"
	"github.com/jac3km4/zoltan/internal/zlog"
)

// Opts collects every option the CLI surface accepts (spec §6).
type Opts struct {
	Source string
	Exe    string

	DWARFOutput string
	COutput     string
	RustOutput  string

	CompilerFlags []string

	StripNamespaces bool
	EagerTypeExport bool
}

// Log is the package-level ring buffer every component tags its entries
// into; cmd/zoltan dumps its tail on a fatal error, mirroring the
// teacher's own crash-report behaviour.
var Log = zlog.NewLogger(200)

// Run executes one recovery pass: scan, resolve, emit. It returns a
// single fatal error if one occurred; per-spec resolution failures are
// logged as warnings and do not fail the run (§7).
func Run(opts Opts) error {
	Log.Logf(zlog.Allow, "app", "reading source %s", opts.Source)
	src, err := os.ReadFile(opts.Source)
	if err != nil {
		return zerr.New(zerr.ExecutableIO, "failed to read source '%s': %v", opts.Source, err)
	}

	// --compiler-flag values are collected for forwarding to a real
	// preprocessor front end; this scanner has no preprocessor of its own
	// (a C/C++ parser is explicitly out of scope, §1), so the flags are
	// only logged here for visibility into what a future front end would
	// have been invoked with.
	for _, flag := range opts.CompilerFlags {
		Log.Logf(zlog.Allow, "app", "compiler flag (unused by the built-in scanner): %s", flag)
	}

	result, err := header.Scan(string(src))
	if err != nil {
		return zerr.New(zerr.UnexpectedKind, "failed to scan source '%s': %v", opts.Source, err)
	}

	if opts.StripNamespaces {
		stripNamespaces(result.Info)
	}

	Log.Logf(zlog.Allow, "app", "loading executable %s", opts.Exe)
	view, err := exeview.Load(opts.Exe)
	if err != nil {
		return zerr.New(zerr.ExecutableIO, "failed to load executable '%s': %v", opts.Exe, err)
	}

	symbols, resolveErrs := resolve.Resolve(result.Targets, view)
	for _, e := range resolveErrs {
		Log.Log(zlog.Allow, "resolve", e)
	}
	Log.Logf(zlog.Allow, "resolve", "%d resolved, %d failed", len(symbols), len(resolveErrs))

	if opts.DWARFOutput == "" && opts.COutput == "" && opts.RustOutput == "" {
		Log.Log(zlog.Allow, "app", "no output option given; nothing written")
		return nil
	}

	if opts.DWARFOutput != "" {
		if err := writeDWARF(opts.DWARFOutput, result.Info, symbols, view, opts.EagerTypeExport); err != nil {
			return err
		}
	} else {
		Log.Log(zlog.Allow, "app", "no --dwarf-output given; skipping DWARF emission")
	}

	if opts.COutput != "" {
		if err := os.WriteFile(opts.COutput, []byte(headerout.WriteC(symbols)), 0o644); err != nil {
			return zerr.New(zerr.OutputError, "failed to write C header '%s': %v", opts.COutput, err)
		}
	} else {
		Log.Log(zlog.Allow, "app", "no --c-output given; skipping C header")
	}

	if opts.RustOutput != "" {
		if err := os.WriteFile(opts.RustOutput, []byte(headerout.WriteRust(symbols)), 0o644); err != nil {
			return zerr.New(zerr.OutputError, "failed to write Rust header '%s': %v", opts.RustOutput, err)
		}
	} else {
		Log.Log(zlog.Allow, "app", "no --rust-output given; skipping Rust constants")
	}

	return nil
}

func writeDWARF(path string, info *types.TypeInfo, symbols []resolve.FunctionSymbol, view *exeview.View, eager bool) error {
	wcharSize := 2
	builder := dwarfw.NewBuilder(info, wcharSize)

	if eager {
		exportAllAggregates(builder, info)
	}

	for _, sym := range symbols {
		builder.AddFunctionSymbol(sym)
	}

	addressSize := byte(4)
	machine := objwriter.MachineI386
	if view.Is64Bit {
		addressSize = 8
		machine = objwriter.MachineX86_64
	}

	abbrev, debugInfo, debugStr := builder.Sections(addressSize)

	sections := []objwriter.Section{
		{Name: ".debug_abbrev", Data: abbrev},
		{Name: ".debug_info", Data: debugInfo},
		{Name: ".debug_str", Data: debugStr},
	}

	f, err := os.Create(path)
	if err != nil {
		return zerr.New(zerr.OutputError, "failed to create DWARF output '%s': %v", path, err)
	}
	defer f.Close()

	if err := objwriter.Write(f, machine, sections); err != nil {
		return zerr.New(zerr.OutputError, "failed to write DWARF output '%s': %v", path, err)
	}
	return nil
}

// exportAllAggregates forces every aggregate recorded in info into the
// DWARF output, even one never referenced from a resolved symbol's
// signature (--eager-type-export).
func exportAllAggregates(builder *dwarfw.Builder, info *types.TypeInfo) {
	for id := range info.Structs {
		builder.GetType(types.Type{Kind: types.Struct, ID: id})
	}
	for id := range info.Unions {
		builder.GetType(types.Type{Kind: types.Union, ID: id})
	}
	for id := range info.Enums {
		builder.GetType(types.Type{Kind: types.Enum, ID: id})
	}
}

// stripNamespaces rewrites every aggregate's display name to drop a
// "Ns::"-style qualifier prefix (--strip-namespaces), matching §9's name
// generation rule. Interned ids are left untouched: type resolution keys
// off the id, not the display name, so this only affects what a debugger
// shows.
func stripNamespaces(info *types.TypeInfo) {
	for _, s := range info.Structs {
		s.Name = stripNamespaceQualifier(s.Name)
	}
	for _, u := range info.Unions {
		u.Name = stripNamespaceQualifier(u.Name)
	}
	for _, e := range info.Enums {
		e.Name = stripNamespaceQualifier(e.Name)
	}
}

func stripNamespaceQualifier(name string) string {
	if idx := strings.LastIndex(name, "::"); idx >= 0 {
		return name[idx+2:]
	}
	return name
}

// SummarizeError formats err the way a fatal top-level failure is logged:
// a single line carrying the full curated error chain (§7).
func SummarizeError(err error) string {
	return fmt.Sprintf("zoltan: %v", err)
}
