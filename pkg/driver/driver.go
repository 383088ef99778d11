// Package driver runs the compilation pipeline: lex, parse, check, lower
// and emit, with an optional on-disk cache of emitted output.
package driver

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/xplshn/elz/pkg/ast"
	"github.com/xplshn/elz/pkg/codegen"
	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/ir"
	"github.com/xplshn/elz/pkg/lexer"
	"github.com/xplshn/elz/pkg/parser"
	"github.com/xplshn/elz/pkg/typeChecker"
)

type Result struct {
	Name     string
	Source   []rune
	Program  []*ast.TopAst
	Module   *ir.Module // nil when checking only or when Output came from the cache
	Warnings []typeChecker.Warning
	Output   []byte
	Cached   bool
}

// InternalError is a panic raised past the checker, i.e. a compiler defect
type InternalError struct {
	Stage string
	Value any
	Stack []byte
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal compiler error while %s: %v", e.Stage, e.Value)
}

type Driver struct {
	Log *logrus.Logger
	// Cache is consulted before lowering; nil disables caching
	Cache *Cache
	// CheckOnly stops after type checking
	CheckOnly bool
}

func New(log *logrus.Logger) *Driver {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Driver{Log: log}
}

// Compile runs the whole pipeline on one source without caching
func Compile(name, source string, cfg *config.Config) (*Result, error) {
	return New(nil).Compile(0, name, source, cfg)
}

// Compile runs the pipeline on a source whose tokens carry fileIndex
func (d *Driver) Compile(fileIndex int, name, source string, cfg *config.Config) (res *Result, err error) {
	log := d.Log.WithField("file", name)
	stage := "tokenizing"
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &InternalError{Stage: stage, Value: r, Stack: debug.Stack()}
		}
	}()

	res = &Result{Name: name, Source: []rune(source)}

	log.Debug("Tokenizing source...")
	tokens, err := lexer.Tokenize(res.Source, fileIndex)
	if err != nil {
		return nil, err
	}

	stage = "parsing"
	log.Debug("Parsing tokens into AST...")
	res.Program, err = parser.NewParser(name, tokens, cfg).Parse()
	if err != nil {
		return nil, err
	}

	stage = "type checking"
	log.Debug("Type checking...")
	res.Warnings, err = typeChecker.Check(res.Program, cfg)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		log.WithField("warning", cfg.Warnings[w.Kind].Name).Debug(w.Message)
	}
	if d.CheckOnly {
		return res, nil
	}

	key := CacheKey(source, cfg)
	if d.Cache != nil {
		entry, ok, err := d.Cache.Get(key)
		if err != nil {
			log.WithError(err).Warn("ignoring unreadable cache entry")
		}
		if ok {
			log.WithField("key", key).Debug("cache hit")
			res.Output, res.Cached = entry.Output, true
			return res, nil
		}
		log.WithField("key", key).Debug("cache miss")
	}

	stage = "lowering"
	log.Debug("Creating intermediate representation...")
	res.Module = codegen.GenerateIR(res.Program, cfg)

	stage = "emitting"
	log.WithField("backend", cfg.Backend).Debug("Generating code...")
	backend, err := codegen.BackendFor(cfg)
	if err != nil {
		return nil, err
	}
	out, err := backend.Generate(res.Module, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", cfg.Backend, err)
	}
	res.Output = out.Bytes()

	if d.Cache != nil {
		if err := d.Cache.Put(key, &CacheEntry{Schema: cacheSchema, Name: name, Output: res.Output}); err != nil {
			log.WithError(err).Warn("could not write cache entry")
		}
	}
	return res, nil
}
