// Command nzslc is the nzsl shader compiler CLI.
//
// Usage:
//
//	nzslc [options] <input>
//
// The input is a source module (.nzsl) or an encoded module (.nzslb).
//
// Examples:
//
//	nzslc shader.nzsl                               # Compile to SPIR-V on stdout
//	nzslc -o shader.spv shader.nzsl                 # Compile to SPIR-V
//	nzslc -target glsl -o shader.glsl shader.nzsl   # One GLSL file per stage
//	nzslc -target spvasm -debug shader.nzsl         # Disassembled SPIR-V
//	nzslc -target nzslb -o shader.nzslb shader.nzsl # Encoded sanitized module
//	nzslc -I modules -D UseTint=false shader.nzsl   # Imports and options
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gogpu/nzsl"
	"github.com/gogpu/nzsl/ast"
	"github.com/gogpu/nzsl/glsl"
	"github.com/gogpu/nzsl/serialize"
	"github.com/gogpu/nzsl/spirv"
)

const nzslVersion = "0.1.0-dev"

// Output formats accepted by -target in addition to the compile targets.
const (
	targetAssembly = "spvasm"
	targetSource   = "nzsl"
	targetBinary   = "nzslb"
)

// listFlag collects the values of a repeated flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

type config struct {
	target           string
	output           string
	stages           string
	defines          listFlag
	includes         listFlag
	partial          bool
	splitBranches    bool
	reduceLoops      bool
	removeMatrixCast bool
	es               bool
	glslVersion      int
	debug            bool
	verbose          bool
	version          bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func newFlagSet(cfg *config, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("nzslc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.target, "target", "spirv", "output format: spirv, spvasm, glsl, nzsl or nzslb")
	fs.StringVar(&cfg.output, "o", "", "output file (default: stdout)")
	fs.StringVar(&cfg.stages, "stage", "", "comma-separated stages to compile: vert, frag, compute (default: all)")
	fs.Var(&cfg.defines, "D", "set an option, as name=value (repeatable)")
	fs.Var(&cfg.includes, "I", "directory of importable modules (repeatable)")
	fs.BoolVar(&cfg.partial, "partial", false, "tolerate unresolved imports (nzsl and nzslb targets)")
	fs.BoolVar(&cfg.splitBranches, "split-branches", false, "split multi-branch conditionals into nested ones")
	fs.BoolVar(&cfg.reduceLoops, "reduce-loops", false, "rewrite for loops as while loops")
	fs.BoolVar(&cfg.removeMatrixCast, "remove-matrix-cast", false, "rewrite matrix casts as column constructions")
	fs.BoolVar(&cfg.es, "es", false, "generate GLSL ES")
	fs.IntVar(&cfg.glslVersion, "glsl-version", 0, "GLSL version, such as 330 or 450 (default: 330, or 300 with -es)")
	fs.BoolVar(&cfg.debug, "debug", false, "include debug names in SPIR-V")
	fs.BoolVar(&cfg.verbose, "v", false, "report progress on stderr")
	fs.BoolVar(&cfg.version, "version", false, "print version")
	fs.Usage = func() { usage(fs, stderr) }
	return fs
}

func usage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintf(w, "Usage: nzslc [options] <input>\n\n")
	fmt.Fprintf(w, "Compiles an nzsl module to SPIR-V or GLSL.\n\n")
	fmt.Fprintf(w, "Options:\n")
	fs.PrintDefaults()
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  nzslc shader.nzsl                              # Compile to SPIR-V on stdout\n")
	fmt.Fprintf(w, "  nzslc -o shader.spv shader.nzsl                # Compile to SPIR-V\n")
	fmt.Fprintf(w, "  nzslc -target glsl -o shader.glsl shader.nzsl  # One GLSL file per stage\n")
	fmt.Fprintf(w, "  nzslc -I modules -D UseTint=false shader.nzsl  # Imports and options\n")
}

func run(args []string, stdout, stderr io.Writer) int {
	var cfg config
	fs := newFlagSet(&cfg, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if cfg.version {
		fmt.Fprintf(stdout, "nzslc version %s\n", nzslVersion)
		return 0
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: no input file specified")
		fs.Usage()
		return 1
	}
	inputPath := fs.Arg(0)

	c := &compiler{cfg: &cfg, stderr: stderr}
	if err := c.setup(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error reading file: %v\n", err)
		return 1
	}

	outputs, err := c.compile(inputPath, data)
	if err != nil {
		var ce *nzsl.CompileError
		if errors.As(err, &ce) && !isBinaryInput(inputPath) {
			fmt.Fprintf(stderr, "Compilation error (%s): %s\n", ce.Stage, ce.FormatWithContext(string(data)))
		} else {
			fmt.Fprintf(stderr, "Compilation error: %v\n", err)
		}
		return 1
	}

	if err := writeOutputs(cfg.output, outputs, stdout); err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return 1
	}
	if cfg.output != "" {
		for _, out := range outputs {
			fmt.Fprintf(stdout, "Successfully compiled %s to %s (%d bytes)\n", inputPath, out.path, len(out.data))
		}
	}
	return 0
}

// compiler holds the options derived from the command line.
type compiler struct {
	cfg    *config
	stderr io.Writer
	opts   nzsl.CompileOptions
}

// output is one generated file. stage is set for per-stage GLSL outputs.
type output struct {
	stage  ast.ShaderStage
	staged bool
	path   string
	data   []byte
}

func (c *compiler) setup() error {
	cfg := c.cfg
	c.opts = nzsl.DefaultOptions()

	switch cfg.target {
	case targetAssembly, targetSource, targetBinary:
		c.opts.Target = nzsl.TargetSPIRV
	default:
		target, err := nzsl.ParseTarget(cfg.target)
		if err != nil {
			return err
		}
		c.opts.Target = target
	}

	stages, err := parseStages(cfg.stages)
	if err != nil {
		return err
	}
	c.opts.Stages = stages

	if len(cfg.defines) > 0 {
		c.opts.OptionValues = ast.OptionValues{}
		for _, def := range cfg.defines {
			name, value, err := parseDefine(def)
			if err != nil {
				return err
			}
			c.opts.OptionValues.Set(name, value)
		}
	}

	if len(cfg.includes) > 0 {
		resolver := nzsl.NewMemoryResolver()
		for _, dir := range cfg.includes {
			if err := resolver.LoadDirectory(dir); err != nil {
				return err
			}
		}
		c.logf("loaded modules: %s", strings.Join(resolver.Names(), ", "))
		c.opts.Resolver = resolver
	}

	c.opts.Sanitize.SplitMultipleBranches = cfg.splitBranches
	c.opts.Sanitize.ReduceLoopsToWhile = cfg.reduceLoops
	c.opts.Sanitize.RemoveMatrixCast = cfg.removeMatrixCast
	c.opts.SPIRV.Debug = cfg.debug || cfg.target == targetAssembly

	c.opts.GLSL.ES = cfg.es
	switch {
	case cfg.glslVersion != 0:
		v, err := glsl.ParseVersion(cfg.glslVersion, cfg.es)
		if err != nil {
			return err
		}
		c.opts.GLSL.Version = v
	case cfg.es:
		c.opts.GLSL.Version = glsl.VersionES300
	}
	return nil
}

func (c *compiler) logf(format string, args ...any) {
	if c.cfg.verbose {
		fmt.Fprintf(c.stderr, "nzslc: "+format+"\n", args...)
	}
}

func (c *compiler) compile(inputPath string, data []byte) ([]output, error) {
	module, err := c.load(inputPath, data)
	if err != nil {
		return nil, err
	}

	switch c.cfg.target {
	case targetSource, targetBinary:
		return c.serialize(module)
	}

	artifact, err := nzsl.CompileModule(module, c.opts)
	if err != nil {
		return nil, err
	}
	for _, stage := range artifact.Stages() {
		c.logf("compiled %s stage", stage)
	}

	if c.cfg.target == targetAssembly {
		text, err := spirv.Disassemble(artifact.SPIRV())
		if err != nil {
			return nil, err
		}
		return []output{{path: c.cfg.output, data: []byte(text)}}, nil
	}

	if artifact.Target() == nzsl.TargetSPIRV {
		return []output{{path: c.cfg.output, data: artifact.SPIRVBytes()}}, nil
	}

	stages := artifact.Stages()
	outputs := make([]output, 0, len(stages))
	for _, stage := range stages {
		code, _ := artifact.GLSL(stage)
		path := c.cfg.output
		if path != "" && len(stages) > 1 {
			path = stagePath(path, stage)
		}
		outputs = append(outputs, output{stage: stage, staged: len(stages) > 1, path: path, data: []byte(code)})
	}
	return outputs, nil
}

func (c *compiler) load(inputPath string, data []byte) (*ast.Module, error) {
	if isBinaryInput(inputPath) {
		module, err := serialize.Decode(data)
		if err != nil {
			return nil, err
		}
		c.logf("decoded %s", inputPath)
		return module, nil
	}
	module, err := nzsl.Parse(string(data))
	if err != nil {
		return nil, &nzsl.CompileError{Stage: nzsl.PhaseParse, Err: err}
	}
	c.logf("parsed %s", inputPath)
	return module, nil
}

func (c *compiler) serialize(module *ast.Module) ([]output, error) {
	opts := c.opts.Sanitize
	opts.ModuleResolver = c.opts.Resolver
	opts.OptionValues = c.opts.OptionValues
	opts.PartialSanitization = c.cfg.partial
	sanitized, err := nzsl.Sanitize(module, opts)
	if err != nil {
		return nil, &nzsl.CompileError{Stage: nzsl.PhaseSanitize, Err: err}
	}
	c.logf("sanitized module")

	var data []byte
	if c.cfg.target == targetBinary {
		data, err = serialize.Encode(sanitized)
	} else {
		var text string
		text, err = serialize.WriteSource(sanitized)
		data = []byte(text)
	}
	if err != nil {
		return nil, err
	}
	return []output{{path: c.cfg.output, data: data}}, nil
}

func isBinaryInput(path string) bool {
	return strings.EqualFold(filepath.Ext(path), "."+targetBinary)
}

// parseStages parses a comma-separated stage list. An empty list selects
// every entry point.
func parseStages(list string) ([]ast.ShaderStage, error) {
	if list == "" {
		return nil, nil
	}
	var stages []ast.ShaderStage
	for _, name := range strings.Split(list, ",") {
		stage, ok := ast.ParseShaderStage(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		stages = append(stages, stage)
	}
	return stages, nil
}

// parseDefine parses a -D argument. A name without a value sets a boolean
// option to true.
func parseDefine(def string) (string, ast.ConstantValue, error) {
	name, raw, found := strings.Cut(def, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("invalid option %q: missing name", def)
	}
	if !found {
		return name, ast.BoolValue(true), nil
	}
	value, err := parseValue(strings.TrimSpace(raw))
	if err != nil {
		return "", nil, fmt.Errorf("invalid value for option %s: %w", name, err)
	}
	return name, value, nil
}

// parseValue reads a literal the way it is written in a module: true and
// false, integers with an optional u suffix, and floats.
func parseValue(s string) (ast.ConstantValue, error) {
	switch s {
	case "true":
		return ast.BoolValue(true), nil
	case "false":
		return ast.BoolValue(false), nil
	case "":
		return nil, errors.New("empty value")
	}
	if digits, ok := strings.CutSuffix(s, "u"); ok {
		v, err := strconv.ParseUint(digits, 0, 32)
		if err != nil {
			return nil, err
		}
		return ast.UInt32Value(v), nil
	}
	if strings.ContainsAny(s, ".eE") && !strings.HasPrefix(s, "0x") {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return ast.Float32Value(v), nil
	}
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return nil, err
	}
	return ast.Int32Value(v), nil
}

// stagePath inserts the stage name before the extension of path.
func stagePath(path string, stage ast.ShaderStage) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + stage.String() + ext
}

func writeOutputs(path string, outputs []output, stdout io.Writer) error {
	for _, out := range outputs {
		if path != "" {
			if err := os.WriteFile(out.path, out.data, 0o644); err != nil { //nolint:gosec // G306: shader output is not sensitive
				return err
			}
			continue
		}
		if out.staged {
			if _, err := fmt.Fprintf(stdout, "// %s\n", out.stage); err != nil {
				return err
			}
		}
		if _, err := stdout.Write(out.data); err != nil {
			return err
		}
	}
	return nil
}
