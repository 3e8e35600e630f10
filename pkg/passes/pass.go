// Package passes implements the optimization pipeline over the SSA IR.
//
// Each pass is a named transformation with declared analysis dependencies
// and invalidations. The manager runs a configured pipeline per function,
// re-running fixed-point groups until no member reports a change, and
// drops cached analyses a changing pass declared invalid.
package passes

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
)

var log = commonlog.GetLogger("covenant.passes")

// maxFixpointIters bounds fixed-point groups. A well-behaved pipeline
// converges in a handful of iterations; hitting the cap is an internal
// error, never silent truncation.
const maxFixpointIters = 32

// Pass is one registered transformation.
type Pass struct {
	Name string

	// Requires names the analyses the pass queries. The manager makes no
	// scheduling decisions from this; it exists for validation and docs.
	Requires []string

	// Invalidates names the analyses dropped from the cache when the
	// pass reports a change.
	Invalidates []string

	// Run transforms the function behind the cache and reports whether
	// anything changed.
	Run func(*analysis.Cache) (bool, error)
}

// registry maps pass names to implementations. Populated at init time;
// read-only afterwards.
var registry = map[string]*Pass{}

func register(p *Pass) {
	if _, dup := registry[p.Name]; dup {
		panic("duplicate pass " + p.Name)
	}
	for _, a := range append(append([]string{}, p.Requires...), p.Invalidates...) {
		if !knownAnalysis(a) {
			panic("pass " + p.Name + " names unknown analysis " + a)
		}
	}
	registry[p.Name] = p
}

func knownAnalysis(name string) bool {
	for _, a := range analysis.All {
		if a == name {
			return true
		}
	}
	return false
}

// Lookup returns the registered pass with the given name.
func Lookup(name string) (*Pass, bool) {
	p, ok := registry[name]
	return p, ok
}

// Names returns all pass names valid in configuration, sorted. Inlining
// is scheduled by the manager rather than registered, but is still a
// valid name to disable or dump.
func Names() []string {
	names := []string{"inline"}
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func validPassName(name string) bool {
	if name == "inline" {
		return true
	}
	_, ok := registry[name]
	return ok
}

// step is one pipeline element: a single pass or a fixed-point group.
type step struct {
	pass  *Pass
	group []*Pass
}

// DefaultOptLevel is the optimization level used when none is configured.
const DefaultOptLevel = 2

// Config controls the pipeline.
type Config struct {
	// Disable lists pass names removed from the pipeline. Unknown names
	// are configuration errors.
	Disable []string `toml:"disable"`

	// OptLevel selects the pipeline shape: 0 runs no passes, 1 runs
	// mem2reg and the cleanup group, 2 runs everything. Callers wanting
	// a default should pass DefaultOptLevel; the zero value means -O0.
	OptLevel int `toml:"opt_level"`

	// Verify runs full IR and dominance verification after every pass
	// that changed the function. Slow; meant for compiler development
	// and bug triage.
	Verify bool `toml:"verify"`

	// DumpAfter lists pass names whose output IR is dumped. Unknown
	// names are configuration errors.
	DumpAfter []string `toml:"dump_after"`

	// InlineBudget caps the callee size, in IR values, the inliner will
	// copy into a caller. Zero means the built-in default.
	InlineBudget int `toml:"inline_budget"`
}

// FuncStats records what the pipeline did to one function.
type FuncStats struct {
	Func         string
	ValuesBefore int
	ValuesAfter  int
	PassChanges  map[string]int // pass name -> times it reported a change
}

// Manager runs a validated pipeline. Per-function phases may run in
// parallel across functions; the inlining phase runs serially because it
// reads callee bodies while rewriting callers.
type Manager struct {
	cfg      Config
	pre      []step // before inlining, per function
	post     []step // after inlining, per function
	doInline bool
	dumpTo   io.Writer
	dump     map[string]bool
}

// NewManager validates cfg and builds the pipeline. A Disable or
// DumpAfter entry naming no registered pass is a configuration error.
func NewManager(cfg Config) (*Manager, error) {
	for _, n := range append(append([]string{}, cfg.Disable...), cfg.DumpAfter...) {
		if !validPassName(n) {
			return nil, fmt.Errorf("passes: unknown pass %q in configuration (have %v)", n, Names())
		}
	}
	m := &Manager{cfg: cfg, dump: make(map[string]bool)}
	for _, n := range cfg.DumpAfter {
		m.dump[n] = true
	}

	disabled := make(map[string]bool)
	for _, n := range cfg.Disable {
		disabled[n] = true
	}
	pick := func(name string) *Pass {
		if disabled[name] {
			return nil
		}
		return registry[name]
	}
	addPass := func(steps *[]step, name string) {
		if p := pick(name); p != nil {
			*steps = append(*steps, step{pass: p})
		}
	}
	addGroup := func(steps *[]step, names ...string) {
		var g []*Pass
		for _, n := range names {
			if p := pick(n); p != nil {
				g = append(g, p)
			}
		}
		if len(g) > 0 {
			*steps = append(*steps, step{group: g})
		}
	}

	if cfg.OptLevel >= 1 {
		addPass(&m.pre, "mem2reg")
		addGroup(&m.pre, "constfold", "cse", "simplifycfg", "dce")
	}
	if cfg.OptLevel >= 2 {
		m.doInline = !disabled["inline"]
		addPass(&m.post, "mem2reg")
		addGroup(&m.post, "constfold", "cse", "simplifycfg", "dce")
		addPass(&m.post, "storageelim")
		addGroup(&m.post, "simplifycfg", "dce")
	}
	return m, nil
}

// SetDumpWriter directs IR dumps requested by DumpAfter to w.
func (m *Manager) SetDumpWriter(w io.Writer) { m.dumpTo = w }

// RunModule runs the whole pipeline over every function in mod. The
// per-function phases run on up to workers goroutines; inlining runs
// serially between them, in declaration order, so the result is
// deterministic regardless of worker count.
func (m *Manager) RunModule(mod *ir.Module, workers int) ([]*FuncStats, error) {
	if workers < 1 {
		workers = 1
	}
	stats := make([]*FuncStats, len(mod.Funcs))
	caches := make([]*analysis.Cache, len(mod.Funcs))
	for i, f := range mod.Funcs {
		stats[i] = &FuncStats{
			Func:         f.Name,
			ValuesBefore: f.NumValues(),
			PassChanges:  make(map[string]int),
		}
		caches[i] = analysis.NewCache(f)
	}

	if err := m.parallel(mod, workers, func(i int) error {
		return m.runSteps(m.pre, caches[i], stats[i])
	}); err != nil {
		return stats, err
	}

	if m.doInline {
		inl := newInliner(mod, m.cfg.InlineBudget)
		for i, f := range mod.Funcs {
			changed, err := inl.run(f)
			if err != nil {
				return stats, err
			}
			if changed {
				stats[i].PassChanges["inline"]++
				caches[i].InvalidateAll()
				if m.cfg.Verify {
					if err := ir.VerifyDominance(f, "inline"); err != nil {
						return stats, err
					}
				}
				if m.dump["inline"] && m.dumpTo != nil {
					fmt.Fprintf(m.dumpTo, "; after inline\n")
					ir.Fprint(m.dumpTo, f)
				}
			}
		}
	}

	if err := m.parallel(mod, workers, func(i int) error {
		return m.runSteps(m.post, caches[i], stats[i])
	}); err != nil {
		return stats, err
	}

	for i, f := range mod.Funcs {
		stats[i].ValuesAfter = f.NumValues()
	}
	return stats, nil
}

func (m *Manager) parallel(mod *ir.Module, workers int, fn func(i int) error) error {
	if workers == 1 || m.dumpTo != nil {
		// Dump output interleaves badly across goroutines; keep it serial.
		for i := range mod.Funcs {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	sem := make(chan struct{}, workers)
	errs := make([]error, len(mod.Funcs))
	var wg sync.WaitGroup
	for i := range mod.Funcs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = fn(i)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) runSteps(steps []step, cache *analysis.Cache, stats *FuncStats) error {
	f := cache.Func()
	for _, st := range steps {
		if st.pass != nil {
			if _, err := m.runOne(st.pass, cache, stats); err != nil {
				return err
			}
			continue
		}
		for iter := 0; ; iter++ {
			if iter == maxFixpointIters {
				return ir.ICE(f.Name, "passes", "fixed-point group did not converge in %d iterations", maxFixpointIters)
			}
			changed := false
			for _, p := range st.group {
				c, err := m.runOne(p, cache, stats)
				if err != nil {
					return err
				}
				changed = changed || c
			}
			if !changed {
				break
			}
		}
	}
	return nil
}

func (m *Manager) runOne(p *Pass, cache *analysis.Cache, stats *FuncStats) (bool, error) {
	f := cache.Func()
	changed, err := p.Run(cache)
	if err != nil {
		return false, err
	}
	if changed {
		stats.PassChanges[p.Name]++
		cache.Invalidate(p.Invalidates...)
		log.Debugf("%s: %s changed", f.Name, p.Name)
	}
	if changed && m.cfg.Verify {
		if err := ir.VerifyDominance(f, p.Name); err != nil {
			return false, err
		}
	}
	if m.dump[p.Name] && m.dumpTo != nil {
		fmt.Fprintf(m.dumpTo, "; after %s\n", p.Name)
		ir.Fprint(m.dumpTo, f)
	}
	return changed, nil
}
