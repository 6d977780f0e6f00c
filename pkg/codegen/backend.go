package codegen

import (
	"bytes"

	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/ssa"
)

// Backend turns a lowered module into target assembly.
type Backend interface {
	// Generate produces the assembly for m on the target cfg describes.
	Generate(m *ssa.Module, cfg *config.Config) (*bytes.Buffer, error)
}

// EmitIL returns the QBE intermediate language for m without running the
// backend.
func EmitIL(m *ssa.Module, cfg *config.Config) (string, error) {
	return (&qbeBackend{}).GenerateIR(m, cfg)
}
