package eval_test

import (
	"testing"

	"github.com/jac3km4/zoltan/internal/eval"
	"github.com/jac3km4/zoltan/internal/zigtest"
)

type fakeMemory map[int64]int64

func (m fakeMemory) ReadPointer(addr int64) (int64, error) {
	return m[addr], nil
}

func TestParseIdentAndEval(t *testing.T) {
	expr, err := eval.Parse("target")
	zigtest.ExpectSuccess(t, err)

	ctx := &eval.Context{Bindings: map[string]int64{"target": 0x1000}}
	v, err := eval.Eval(expr, ctx)
	zigtest.ExpectSuccess(t, err)
	zigtest.ExpectEquality(t, v, int64(0x1000))
}

func TestParseAddSubLeftAssociative(t *testing.T) {
	expr, err := eval.Parse("target + 1 - 2")
	zigtest.ExpectSuccess(t, err)

	ctx := &eval.Context{Bindings: map[string]int64{"target": 100}}
	v, err := eval.Eval(expr, ctx)
	zigtest.ExpectSuccess(t, err)
	// integer literals are scaled by the pointer size.
	zigtest.ExpectEquality(t, v, int64(100+8-16))
}

func TestParseDeref(t *testing.T) {
	expr, err := eval.Parse("*target")
	zigtest.ExpectSuccess(t, err)

	ctx := &eval.Context{
		Bindings: map[string]int64{"target": 0x2000},
		Mem:      fakeMemory{0x2000: 0x3000},
	}
	v, err := eval.Eval(expr, ctx)
	zigtest.ExpectSuccess(t, err)
	zigtest.ExpectEquality(t, v, int64(0x3000))
}

func TestParseParenthesesAndNestedDeref(t *testing.T) {
	expr, err := eval.Parse("*(target + 8)")
	zigtest.ExpectSuccess(t, err)

	ctx := &eval.Context{
		Bindings: map[string]int64{"target": 0x1000},
		Mem:      fakeMemory{0x1000 + 8*8: 0x4000},
	}
	v, err := eval.Eval(expr, ctx)
	zigtest.ExpectSuccess(t, err)
	zigtest.ExpectEquality(t, v, int64(0x4000))
}

func TestUnresolvedIdentFails(t *testing.T) {
	expr, err := eval.Parse("missing")
	zigtest.ExpectSuccess(t, err)

	ctx := &eval.Context{Bindings: map[string]int64{}}
	_, err = eval.Eval(expr, ctx)
	zigtest.ExpectFailure(t, err)
}

func TestHexLiteral(t *testing.T) {
	expr, err := eval.Parse("0x10")
	zigtest.ExpectSuccess(t, err)

	v, err := eval.Eval(expr, &eval.Context{})
	zigtest.ExpectSuccess(t, err)
	zigtest.ExpectEquality(t, v, int64(0x10*8))
}

func TestTrailingInputIsRejected(t *testing.T) {
	_, err := eval.Parse("target )")
	zigtest.ExpectFailure(t, err)
}
