package app

import (
	"errors"
	"testing"

	"github.com/jac3km4/zoltan/internal/types"
)

func TestStripNamespaceQualifierDropsPrefix(t *testing.T) {
	cases := map[string]string{
		"Engine::Renderer": "Renderer",
		"A::B::C":          "C",
		"Plain":            "Plain",
	}
	for in, want := range cases {
		if got := stripNamespaceQualifier(in); got != want {
			t.Errorf("stripNamespaceQualifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStripNamespacesRewritesAggregateNames(t *testing.T) {
	info := types.NewTypeInfo()
	info.Structs["S"] = &types.StructType{Name: "Engine::S"}
	info.Unions["U"] = &types.UnionType{Name: "Engine::U"}
	info.Enums["E"] = &types.EnumType{Name: "Engine::E"}

	stripNamespaces(info)

	if info.Structs["S"].Name != "S" {
		t.Errorf("struct name = %q, want S", info.Structs["S"].Name)
	}
	if info.Unions["U"].Name != "U" {
		t.Errorf("union name = %q, want U", info.Unions["U"].Name)
	}
	if info.Enums["E"].Name != "E" {
		t.Errorf("enum name = %q, want E", info.Enums["E"].Name)
	}
}

func TestSummarizeErrorIncludesChain(t *testing.T) {
	err := errors.New("boom")
	msg := SummarizeError(err)
	if msg != "zoltan: boom" {
		t.Errorf("SummarizeError = %q, want %q", msg, "zoltan: boom")
	}
}
