package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes a textual dump of f to w. The format is stable enough
// for golden tests: blocks in slice order, values in block order.
func Fprint(w io.Writer, f *Func) {
	fmt.Fprintf(w, "func %s [%s]", f.Name, f.Effect)
	if len(f.Entry.Params) > 0 {
		parts := make([]string, len(f.Entry.Params))
		for i, p := range f.Entry.Params {
			parts[i] = fmt.Sprintf("%s <%s>", p, p.Type)
		}
		fmt.Fprintf(w, " (%s)", strings.Join(parts, ", "))
	}
	if f.ReturnType != nil {
		fmt.Fprintf(w, " -> %s", f.ReturnType)
	}
	fmt.Fprintln(w)

	for _, b := range f.Blocks {
		fmt.Fprintf(w, "  %s", b)
		if b != f.Entry && len(b.Params) > 0 {
			parts := make([]string, len(b.Params))
			for i, p := range b.Params {
				parts[i] = fmt.Sprintf("%s <%s>", p, p.Type)
			}
			fmt.Fprintf(w, "(%s)", strings.Join(parts, ", "))
		}
		fmt.Fprintln(w, ":")
		for _, v := range b.Values {
			fmt.Fprintf(w, "    %s\n", v.LongString())
		}
		fmt.Fprintf(w, "    %s", b.Kind)
		for _, c := range b.Controls {
			fmt.Fprintf(w, " %s", c)
		}
		for _, e := range b.Succs {
			fmt.Fprintf(w, " -> %s", e.Block)
			if len(e.Args) > 0 {
				parts := make([]string, len(e.Args))
				for i, a := range e.Args {
					parts[i] = a.String()
				}
				fmt.Fprintf(w, "(%s)", strings.Join(parts, ", "))
			}
		}
		fmt.Fprintln(w)
	}
}

// Sprint returns the textual dump of f as a string.
func Sprint(f *Func) string {
	var sb strings.Builder
	Fprint(&sb, f)
	return sb.String()
}
