package errs

import (
	"errors"
	"testing"
)

func TestWrapPreservesChain(t *testing.T) {
	base := errors.New("boom")
	err := Wrapf(Wrap(base, "read payload"), "source %s", "congreso_votaciones")

	if !errors.Is(err, base) {
		t.Fatalf("errors.Is() = false, want true")
	}
	if got, want := err.Error(), "source congreso_votaciones: read payload: boom"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	chain := ErrorChainStrings(err)
	if len(chain) != 3 || chain[2] != "boom" {
		t.Fatalf("ErrorChainStrings() = %q, want 3 entries ending in the root cause", chain)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "x") != nil || Wrapf(nil, "x %d", 1) != nil || WithStack(nil) != nil {
		t.Fatalf("nil errors must stay nil")
	}
}

func TestWithStackCapturesOnce(t *testing.T) {
	err := WithStack(errors.New("root"))
	again := WithStack(Wrap(err, "outer"))

	var se *StackError
	if !errors.As(again, &se) {
		t.Fatalf("errors.As(StackError) = false")
	}
	if len(se.Stack()) == 0 {
		t.Fatalf("stack is empty")
	}
}
