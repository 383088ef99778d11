//go:build !windows

package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/elz/pkg/config"
	"modernc.org/libqbe"
)

func (b *qbeBackend) assemble(il string, cfg *config.Config) (*bytes.Buffer, error) {
	var asmBuf bytes.Buffer
	err := libqbe.Main(cfg.QbeTarget, "input.ssa", strings.NewReader(il), &asmBuf, nil)
	if err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IL:\n%s\n\nlibqbe error: %w", il, err)
	}
	return &asmBuf, nil
}
