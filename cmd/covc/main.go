// covc - the Covenant contract compiler back end
//
// Reads a type-checked declaration tree (canonical CBOR, produced by the
// front end), compiles it, and writes the deployable bytecode next to a
// CBOR storage table describing the contract's assigned state keys.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/covenant-lang/covenant/pkg/compile"
	"github.com/covenant-lang/covenant/pkg/decl"
	"github.com/covenant-lang/covenant/pkg/passes"
	"github.com/covenant-lang/covenant/pkg/vm"
)

// buildConfig is the on-disk TOML configuration.
type buildConfig struct {
	Passes passes.Config `toml:"passes"`
}

func main() {
	output := flag.String("o", "", "Output bytecode path (default: input with .cvbc extension)")
	tableOut := flag.String("table", "", "Storage table output path (default: output with .storage.cbor extension)")
	configPath := flag.String("config", "", "TOML build configuration file")
	optLevel := flag.Int("O", passes.DefaultOptLevel, "Optimization level (0-2)")
	disable := flag.String("disable", "", "Comma-separated pass names to disable")
	asm := flag.Bool("S", false, "Print disassembly to stdout")
	dump := flag.String("dump-after", "", "Comma-separated pass names whose IR is dumped to stderr")
	verify := flag.Bool("verify", false, "Verify the IR after every pass (slow)")
	workers := flag.Int("workers", runtime.NumCPU(), "Parallel function compilation limit")
	verbose := flag.Int("v", 0, "Log verbosity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: covc [options] contract.cbor\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a checked contract tree to Covenant VM bytecode.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  covc token.cbor                  # Compile with default optimization\n")
		fmt.Fprintf(os.Stderr, "  covc -O 0 -S token.cbor          # Unoptimized, print assembly\n")
		fmt.Fprintf(os.Stderr, "  covc -disable cse,inline in.cbor # Turn individual passes off\n")
		fmt.Fprintf(os.Stderr, "  covc -config build.toml in.cbor  # Load pipeline settings from TOML\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	commonlog.Configure(*verbose, nil)

	var cfg buildConfig
	cfg.Passes.OptLevel = passes.DefaultOptLevel
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			fail("reading %s: %v", *configPath, err)
		}
	}

	// Flags override the configuration file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "O":
			cfg.Passes.OptLevel = *optLevel
		case "verify":
			cfg.Passes.Verify = *verify
		case "disable":
			cfg.Passes.Disable = splitList(*disable)
		case "dump-after":
			cfg.Passes.DumpAfter = splitList(*dump)
		}
	})

	data, err := os.ReadFile(input)
	if err != nil {
		fail("%v", err)
	}
	contract, err := decl.UnmarshalContract(data)
	if err != nil {
		fail("decoding %s: %v", input, err)
	}

	opts := compile.Options{
		Passes:  cfg.Passes,
		Workers: *workers,
	}
	if len(cfg.Passes.DumpAfter) > 0 {
		opts.DumpWriter = os.Stderr
	}

	art, err := compile.Compile(contract, opts)
	if err != nil {
		fail("%v", err)
	}

	outPath := *output
	if outPath == "" {
		outPath = replaceExt(input, ".cvbc")
	}
	tablePath := *tableOut
	if tablePath == "" {
		tablePath = replaceExt(outPath, ".storage.cbor")
	}
	if err := os.WriteFile(outPath, art.Bytecode, 0o644); err != nil {
		fail("%v", err)
	}
	if err := os.WriteFile(tablePath, art.StorageTable, 0o644); err != nil {
		fail("%v", err)
	}

	if *asm {
		fmt.Print(vm.Disassemble(art.Program))
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "covc: "+format+"\n", args...)
	os.Exit(1)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func replaceExt(path, ext string) string {
	if i := strings.LastIndexByte(path, '.'); i > strings.LastIndexByte(path, '/') {
		return path[:i] + ext
	}
	return path + ext
}
