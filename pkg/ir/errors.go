package ir

import (
	"errors"
	"fmt"

	"github.com/covenant-lang/covenant/pkg/source"
)

// InternalError reports a defect in the compiler itself: a verifier
// failure, an illegal SSA state, or an unallocatable lowering. It is
// always fatal to the build and is never downgraded to a user
// diagnostic. Func and Pass identify where the bad state was produced.
type InternalError struct {
	Func string // function being transformed, if known
	Pass string // pass that produced the state, if known
	Msg  string
}

func (e *InternalError) Error() string {
	s := "internal compiler error"
	if e.Pass != "" {
		s += " [pass " + e.Pass + "]"
	}
	if e.Func != "" {
		s += " in " + e.Func
	}
	return s + ": " + e.Msg
}

// ICE constructs an InternalError with formatting.
func ICE(fn, pass, format string, args ...interface{}) *InternalError {
	return &InternalError{Func: fn, Pass: pass, Msg: fmt.Sprintf(format, args...)}
}

// Diagnostic is a user-facing build error: the input program (or build
// configuration) is at fault, not the compiler. Diagnostics carry a
// source position and never crash the build; independent functions keep
// compiling so several can be collected per run.
type Diagnostic struct {
	Pos source.Pos
	Msg string
}

func (d *Diagnostic) Error() string {
	if d.Pos.IsValid() {
		return d.Pos.String() + ": " + d.Msg
	}
	return d.Msg
}

// Errorf constructs a Diagnostic with formatting.
func Errorf(pos source.Pos, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// DiagnosticList aggregates diagnostics from independent functions so a
// single build reports all of them.
type DiagnosticList []*Diagnostic

func (l DiagnosticList) Error() string {
	switch len(l) {
	case 0:
		return "no diagnostics"
	case 1:
		return l[0].Error()
	}
	s := l[0].Error()
	for _, d := range l[1:] {
		s += "\n" + d.Error()
	}
	return s
}

// Add appends err when it is a Diagnostic and reports whether it was.
// Internal errors are not collectable; they abort the build.
func (l *DiagnosticList) Add(err error) bool {
	var d *Diagnostic
	if errors.As(err, &d) {
		*l = append(*l, d)
		return true
	}
	return false
}
