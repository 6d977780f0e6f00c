//go:build windows

package codegen

import (
	"bytes"
	"io"
	"os"
	"os/exec"

	"github.com/pkg/errors"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/ssa"
)

func (b *qbeBackend) Generate(m *ssa.Module, cfg *config.Config) (*bytes.Buffer, error) {
	cfg.Infof("self-contained QBE backend is not supported on Windows, falling back to the system's 'qbe'")
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, errors.Wrap(err, "QBE not found in PATH")
	}

	il, err := b.GenerateIR(m, cfg)
	if err != nil {
		return nil, err
	}

	in, err := os.CreateTemp("", "odinc-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(in.Name())
	defer in.Close()
	if _, err = in.WriteString(il); err != nil {
		return nil, err
	}

	outName := in.Name() + ".s"
	defer os.Remove(outName)
	cmd := exec.Command("qbe", "-o", outName, "-t", cfg.QbeTarget, in.Name())
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "qbe failed on the generated IL:\n%s", il)
	}

	out, err := os.Open(outName)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	var asm bytes.Buffer
	if _, err = io.Copy(&asm, out); err != nil {
		return nil, err
	}
	return &asm, nil
}
