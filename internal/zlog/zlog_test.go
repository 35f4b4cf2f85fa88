package zlog_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/jac3km4/zoltan/internal/zigtest"
	"github.com/jac3km4/zoltan/internal/zlog"
)

func TestCentralLogger(t *testing.T) {
	log := zlog.NewLogger(100)
	w := &strings.Builder{}

	log.Write(w)
	zigtest.ExpectEquality(t, w.String(), "")

	log.Log(zlog.Allow, "test", "this is a test")
	log.Write(w)
	zigtest.ExpectEquality(t, w.String(), "test: this is a test\n")

	w.Reset()
	log.Log(zlog.Allow, "test2", "this is another test")
	log.Write(w)
	zigtest.ExpectEquality(t, w.String(), "test: this is a test\ntest2: this is another test\n")

	w.Reset()
	log.Tail(w, 100)
	zigtest.ExpectEquality(t, w.String(), "test: this is a test\ntest2: this is another test\n")

	w.Reset()
	log.Tail(w, 2)
	zigtest.ExpectEquality(t, w.String(), "test: this is a test\ntest2: this is another test\n")

	w.Reset()
	log.Tail(w, 1)
	zigtest.ExpectEquality(t, w.String(), "test2: this is another test\n")

	w.Reset()
	log.Tail(w, 0)
	zigtest.ExpectEquality(t, w.String(), "")
}

type prohibitLogging struct {
	allow int
}

func (p prohibitLogging) AllowLogging() bool {
	return p.allow > 50
}

func TestPermissions(t *testing.T) {
	log := zlog.NewLogger(100)
	w := &strings.Builder{}

	var p prohibitLogging
	for i := 0; i < 100; i++ {
		p.allow = rand.Intn(100)
		log.Clear()
		w.Reset()
		log.Log(p, "tag", "detail")
		log.Write(w)
		if p.AllowLogging() {
			zigtest.ExpectEquality(t, w.String(), "tag: detail\n")
		} else {
			zigtest.ExpectEquality(t, w.String(), "")
		}
	}
}

func TestErrorLogging(t *testing.T) {
	log := zlog.NewLogger(100)
	w := &strings.Builder{}

	err := errors.New("test error")

	log.Log(zlog.Allow, "tag", err)
	log.Write(w)
	zigtest.ExpectEquality(t, w.String(), "tag: test error\n")

	log.Clear()
	w.Reset()
	log.Logf(zlog.Allow, "tag", "wrapped: %v", err)
	log.Write(w)
	zigtest.ExpectEquality(t, w.String(), "tag: wrapped: test error\n")
}

type stringerTest struct{}

func (stringerTest) String() string {
	return "stringer test"
}

func TestStringerLogging(t *testing.T) {
	log := zlog.NewLogger(100)
	w := &strings.Builder{}

	log.Log(zlog.Allow, "tag", stringerTest{})
	log.Write(w)
	zigtest.ExpectEquality(t, w.String(), "tag: stringer test\n")
}

func TestIntLogging(t *testing.T) {
	log := zlog.NewLogger(100)
	w := &strings.Builder{}

	log.Log(zlog.Allow, "tag", 100)
	log.Write(w)
	zigtest.ExpectEquality(t, w.String(), "tag: 100\n")
}

func TestRingLimit(t *testing.T) {
	log := zlog.NewLogger(2)
	w := &strings.Builder{}

	log.Log(zlog.Allow, "a", "1")
	log.Log(zlog.Allow, "b", "2")
	log.Log(zlog.Allow, "c", "3")
	log.Write(w)
	zigtest.ExpectEquality(t, w.String(), "b: 2\nc: 3\n")
}
