// Package build is the single entry point that turns a citron.toml
// manifest into an executable: parse every listed source file, run
// the checker and lowering pass over the merged file set against one
// shared diagnostic sink, and — only if nothing in the project failed
// to check or lower — hand the lowered module to codegen and shell
// out to clang to link it against the citron runtime.
//
// Grounded on the teacher's build.Builder (Build's load-config/
// compile/link/link-executable pipeline shape, CacheManager reuse),
// adapted from a multi-module import-graph build (yar.toml + the
// module loader) to a flat manifest listing every source file in the
// package directly, since citron has no import system for mir.Lower
// to resolve.
package build

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/arrowlang/citron/ast"
	"github.com/arrowlang/citron/checker"
	"github.com/arrowlang/citron/codegen"
	"github.com/arrowlang/citron/diag"
	"github.com/arrowlang/citron/lexer"
	"github.com/arrowlang/citron/mir"
	"github.com/arrowlang/citron/parser"
	"go.uber.org/multierr"
)

// Config represents citron.toml.
type Config struct {
	Package struct {
		Name    string   `toml:"name"`
		Sources []string `toml:"sources"`
	} `toml:"package"`
}

// Builder handles compilation of one citron.toml project.
type Builder struct {
	projectRoot string
	cache       *CacheManager
}

// NewBuilder creates a Builder rooted at projectRoot, the directory
// containing citron.toml.
func NewBuilder(projectRoot string) *Builder {
	return &Builder{
		projectRoot: projectRoot,
		cache:       NewCacheManager(projectRoot),
	}
}

// Build loads citron.toml, checks and lowers every listed source file
// against one shared sink, and — if the whole project checks clean —
// generates and links an executable.
func (b *Builder) Build() error {
	config, err := b.loadConfig()
	if err != nil {
		return err
	}

	if err := b.setupBuildDirs(); err != nil {
		return err
	}

	sourcePaths := make([]string, len(config.Package.Sources))
	for i, src := range config.Package.Sources {
		sourcePaths[i] = filepath.Join(b.projectRoot, src)
	}

	needsRebuild, err := b.cache.NeedsRebuild(config.Package.Name, sourcePaths)
	if err != nil {
		return err
	}

	irPath := filepath.Join(b.projectRoot, "build", "ir", config.Package.Name+".ll")

	if !needsRebuild {
		fmt.Printf("  Using cached %s\n", config.Package.Name)
	} else {
		fmt.Printf("  Building %s\n", config.Package.Name)

		mod, err := b.checkAndLower(sourcePaths)
		if err != nil {
			return err
		}

		ir, err := b.generate(config.Package.Name, mod)
		if err != nil {
			return err
		}

		if err := os.WriteFile(irPath, []byte(ir), 0644); err != nil {
			return fmt.Errorf("failed to write IR: %w", err)
		}

		if err := b.cache.SaveSourceSetEntry(config.Package.Name, sourcePaths); err != nil {
			return fmt.Errorf("failed to save build cache: %w", err)
		}
	}

	return b.compileExecutable(config.Package.Name, irPath)
}

func (b *Builder) loadConfig() (*Config, error) {
	configPath := filepath.Join(b.projectRoot, "citron.toml")

	var config Config
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, fmt.Errorf("failed to load citron.toml: %w", err)
	}

	if len(config.Package.Sources) == 0 {
		return nil, fmt.Errorf("citron.toml: package.sources must list at least one source file")
	}

	return &config, nil
}

func (b *Builder) setupBuildDirs() error {
	dirs := []string{
		filepath.Join(b.projectRoot, "build", "ir"),
		filepath.Join(b.projectRoot, "build", "bin"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// checkAndLower parses every file in sourcePaths, runs the checker
// over the whole set against one sink, then lowers every file against
// the same sink, merging the results into a single mir.Module.
// Parsing, checking, and lowering all continue past the first failing
// file so that Build reports every diagnostic in the project in one
// run rather than stopping at the first error.
func (b *Builder) checkAndLower(sourcePaths []string) (*mir.Module, error) {
	sink := diag.NewSink()
	c := checker.New(sink)

	files, err := b.parseAll(sourcePaths, sink)
	if err != nil {
		return nil, err
	}

	for _, file := range files {
		c.CheckFile(file)
	}

	if sink.HasErrors() {
		return nil, diagErrors(sink)
	}

	lowerer := mir.NewLowerer(c.Table(), sink)
	funcSigs := c.Funcs()
	strings := c.StringPool()

	mod := &mir.Module{Strings: strings}

	for _, file := range files {
		part := lowerer.LowerFile(file, funcSigs, strings)
		mod.Globals = append(mod.Globals, part.Globals...)
		mod.Functions = append(mod.Functions, part.Functions...)
	}

	if sink.HasErrors() {
		return nil, diagErrors(sink)
	}

	return mod, nil
}

// parseAll lexes and parses every source path, reporting parse errors
// into sink as diagnostics located at the start of the offending file
// so they fold into the same collect-then-fail report as checker and
// mir errors.
func (b *Builder) parseAll(sourcePaths []string, sink *diag.Sink) ([]*ast.File, error) {
	var files []*ast.File

	for _, path := range sourcePaths {
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		p := parser.New(lexer.New(string(source)))
		file := p.ParseFile()

		for _, msg := range p.Errors() {
			sink.Error(ast.Position{}, "%s: %s", path, msg)
		}

		files = append(files, file)
	}

	return files, nil
}

// diagErrors folds every error-severity diagnostic in sink into one
// combined error via multierr, so a caller sees every failure in the
// project in a single value instead of only the first.
func diagErrors(sink *diag.Sink) error {
	var errs error

	for _, d := range sink.Errors() {
		errs = multierr.Append(errs, d)
	}

	return errs
}

func (b *Builder) generate(name string, mod *mir.Module) (string, error) {
	gen := codegen.New(name)
	if err := gen.Generate(mod); err != nil {
		return "", fmt.Errorf("codegen error: %w", err)
	}

	return gen.EmitIR(), nil
}

func (b *Builder) compileExecutable(name, irPath string) error {
	outputPath := filepath.Join(b.projectRoot, "build", "bin", name)

	args := []string{"-o", outputPath, irPath}

	// citron's extern declarations are how source links against libc
	// directly (citron has no println-style builtin of its own); the
	// runtime archive only needs to exist when a project relies on
	// something beyond libc, so its absence is not fatal to the link.
	runtimeLib := filepath.Join(b.projectRoot, "runtime", "libcitronrt.a")
	if _, err := os.Stat(runtimeLib); err == nil {
		args = append(args, runtimeLib)
	}

	cmd := exec.Command("clang", args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("clang failed: %w\n%s", err, output)
	}

	fmt.Printf("    Finished: %s\n", outputPath)

	return nil
}
