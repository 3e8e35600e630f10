// Package compile drives a whole contract build: storage layout
// assignment, IR construction, the optimization pipeline, and code
// generation, in that order. The result is bit-reproducible: compiling
// the same declaration tree with the same options yields byte-identical
// bytecode and storage tables regardless of worker count.
package compile

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/covenant-lang/covenant/pkg/codegen"
	"github.com/covenant-lang/covenant/pkg/decl"
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/ir/irgen"
	"github.com/covenant-lang/covenant/pkg/passes"
	"github.com/covenant-lang/covenant/pkg/storage"
	"github.com/covenant-lang/covenant/pkg/vm"
)

var log = commonlog.GetLogger("covenant.compile")

// Options configures one build.
type Options struct {
	// Passes configures the optimization pipeline. The zero value runs
	// no passes; most callers want OptLevel set to passes.DefaultOptLevel.
	Passes passes.Config

	// Workers bounds the goroutines used for per-function phases.
	// Values below 1 mean one.
	Workers int

	// DumpWriter receives IR dumps requested by Passes.DumpAfter.
	DumpWriter io.Writer
}

// Artifact is the output of a successful build.
type Artifact struct {
	// BuildID is a fresh identifier for this compilation run. It is
	// metadata only and never part of the serialized program.
	BuildID string

	Program *vm.Program

	// Bytecode is the serialized program.
	Bytecode []byte

	// StorageTable is the canonical CBOR encoding of the assigned
	// storage layout.
	StorageTable []byte

	Layout *storage.Layout
	Stats  []*passes.FuncStats
}

// Compile builds a fully-checked contract into a deployable artifact.
func Compile(c *decl.Contract, opts Options) (*Artifact, error) {
	layout, err := assignLayout(c)
	if err != nil {
		return nil, err
	}

	mod, err := irgen.NewBuilder(c, layout).BuildModule()
	if err != nil {
		return nil, err
	}
	for _, f := range mod.Funcs {
		if err := ir.Verify(f, "irgen"); err != nil {
			return nil, err
		}
	}

	mgr, err := passes.NewManager(opts.Passes)
	if err != nil {
		return nil, err
	}
	if opts.DumpWriter != nil {
		mgr.SetDumpWriter(opts.DumpWriter)
	}
	stats, err := mgr.RunModule(mod, opts.Workers)
	if err != nil {
		return nil, err
	}
	for _, f := range mod.Funcs {
		if err := ir.Verify(f, "pipeline"); err != nil {
			return nil, err
		}
	}

	prog, err := codegen.Generate(mod)
	if err != nil {
		return nil, err
	}
	code, err := prog.Serialize()
	if err != nil {
		return nil, fmt.Errorf("compile: serializing program: %w", err)
	}
	table, err := layout.MarshalTable()
	if err != nil {
		return nil, fmt.Errorf("compile: encoding storage table: %w", err)
	}

	art := &Artifact{
		BuildID:      uuid.NewString(),
		Program:      prog,
		Bytecode:     code,
		StorageTable: table,
		Layout:       layout,
		Stats:        stats,
	}
	log.Infof("compiled %s: %d functions, %d state fields, %d bytes (build %s)",
		c.Name, len(prog.Funcs), len(layout.Entries()), len(code), art.BuildID)
	return art, nil
}

// assignLayout resolves the declared state fields and runs slot
// assignment over them.
func assignLayout(c *decl.Contract) (*storage.Layout, error) {
	r := decl.NewResolver(c)
	var diags ir.DiagnosticList
	specs := make([]storage.FieldSpec, 0, len(c.State))
	for _, sf := range c.State {
		t, err := r.Resolve(sf.Type)
		if err != nil {
			return nil, ir.ICE("", "layout", "state field %s: %v", sf.Name, err)
		}
		spec := storage.FieldSpec{
			Path: storage.FieldPath{Namespace: sf.Namespace, Name: sf.Name},
			Type: t,
			Pos:  sf.Pos,
		}
		if sf.Override != "" {
			w, err := storage.ParseOverride(sf.Override)
			if err != nil {
				diags = append(diags, ir.Errorf(sf.Pos, "state field %s: %v", spec.Path, err))
				continue
			}
			spec.Override = &w
		}
		specs = append(specs, spec)
	}
	if len(diags) > 0 {
		return nil, diags
	}
	return storage.Assign(specs)
}
