package codegen

import (
	"bytes"
	"fmt"

	"github.com/xplshn/elz/pkg/config"
	"github.com/xplshn/elz/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a lowered module and a configuration, and produces the
	// target assembly or intermediate language as a byte buffer.
	Generate(m *ir.Module, cfg *config.Config) (*bytes.Buffer, error)
}

// BackendFor returns the backend selected by cfg.Backend
func BackendFor(cfg *config.Config) (Backend, error) {
	switch cfg.Backend {
	case "llvm":
		return NewLLVMBackend(), nil
	case "qbe":
		return NewQBEBackend(), nil
	}
	return nil, fmt.Errorf("unsupported backend '%s'", cfg.Backend)
}
