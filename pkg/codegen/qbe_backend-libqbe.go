//go:build !windows

package codegen

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/ssa"
	"modernc.org/libqbe"
)

func (b *qbeBackend) Generate(m *ssa.Module, cfg *config.Config) (*bytes.Buffer, error) {
	il, err := b.GenerateIR(m, cfg)
	if err != nil {
		return nil, err
	}

	var asm bytes.Buffer
	if err := libqbe.Main(cfg.QbeTarget, "input.ssa", strings.NewReader(il), &asm, nil); err != nil {
		return nil, errors.Wrapf(err, "libqbe failed on the generated IL:\n%s", il)
	}
	cfg.Infof("qbe: generated %d bytes of assembly for target '%s'", asm.Len(), cfg.QbeTarget)
	return &asm, nil
}
