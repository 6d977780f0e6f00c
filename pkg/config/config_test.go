package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/odinc/pkg/types"
)

func enabledWarnings(c *Config) map[string]bool {
	out := make(map[string]bool)
	for _, info := range c.Warnings {
		out[info.Name] = info.Enabled
	}
	return out
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		want  map[string]bool
	}{
		{"defaults", nil, map[string]bool{
			"align-clamp": true, "unreachable-code": true, "pedantic": false, "extra": true,
		}},
		{"disable one", []string{"-Wno-extra"}, map[string]bool{
			"align-clamp": true, "unreachable-code": true, "pedantic": false, "extra": false,
		}},
		{"no-all keeps later overrides", []string{"-Wunreachable-code", "-Wno-all"}, map[string]bool{
			"align-clamp": false, "unreachable-code": true, "pedantic": false, "extra": false,
		}},
		{"all leaves pedantic alone", []string{"-Wall"}, map[string]bool{
			"align-clamp": true, "unreachable-code": true, "pedantic": false, "extra": true,
		}},
		{"unknown names are ignored", []string{"-Wbogus", "-Fbogus"}, map[string]bool{
			"align-clamp": true, "unreachable-code": true, "pedantic": false, "extra": true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewConfig()
			c.Log = nil
			c.ApplyFlags(tt.flags)
			if diff := cmp.Diff(tt.want, enabledWarnings(c)); diff != "" {
				t.Errorf("warnings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFeatureFlags(t *testing.T) {
	c := NewConfig()
	c.ProcessDirectiveFlags("-Fno-context -Fno-bounds-check")
	if c.IsFeatureEnabled(FeatContext) || c.IsFeatureEnabled(FeatBoundsCheck) {
		t.Errorf("features still enabled after -Fno-")
	}
	if !c.IsFeatureEnabled(FeatTypeInfo) {
		t.Errorf("type-info disabled without a flag")
	}
}

func TestSetTarget(t *testing.T) {
	tests := []struct {
		goos, goarch, target string
		wordSize             int
		wordType             string
		abi                  types.ABI
	}{
		{"linux", "amd64", "amd64_sysv", 8, "l", types.ABILinux},
		{"windows", "amd64", "amd64_sysv", 8, "l", types.ABIWindows},
		{"darwin", "arm64", "arm64_apple", 8, "l", types.ABIUnknown},
		{"linux", "riscv", "rv32", 4, "w", types.ABILinux},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.target, func(t *testing.T) {
			c := NewConfig()
			c.Log = nil
			c.SetTarget(tt.goos, tt.goarch, tt.target)
			got := []interface{}{c.WordSize, c.WordType, c.ABI, c.Sizes().WordSize}
			want := []interface{}{tt.wordSize, tt.wordType, tt.abi, int64(tt.wordSize)}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("target mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
