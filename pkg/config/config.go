package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/odinc/pkg/types"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatBoundsCheck Feature = iota
	FeatContext
	FeatTypeInfo
	FeatCount
)

type Warning int

const (
	WarnAlignClamp Warning = iota
	WarnUnreachableCode
	WarnPedantic
	WarnExtra
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	TargetOS       string
	TargetArch     string
	QbeTarget      string
	WordSize       int
	WordType       string
	StackAlignment int
	MaxAlign       int64
	ABI            types.ABI
	Verbose        bool
	Log            io.Writer
}

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		Log:        os.Stderr,
	}

	features := map[Feature]Info{
		FeatBoundsCheck: {"bounds-check", true, "Diagnose constant indices outside a known length."},
		FeatContext:     {"context", true, "Allow the implicit `context` value inside procedures."},
		FeatTypeInfo:    {"type-info", true, "Allow `type_info` and `type_info_of_val`."},
	}

	warnings := map[Warning]Info{
		WarnAlignClamp:      {"align-clamp", true, "Warn when a custom `#align` is clamped to the target maximum."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about statements that follow a terminating statement."},
		WarnPedantic:        {"pedantic", false, "Issue all warnings demanded by the strict language rules."},
		WarnExtra:           {"extra", true, "Enable extra miscellaneous warnings."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	cfg.WordSize, cfg.WordType, cfg.StackAlignment, cfg.MaxAlign = 8, "l", 16, 16
	return cfg
}

// Infof logs a progress message when verbose output is enabled.
func (c *Config) Infof(format string, args ...interface{}) {
	if !c.Verbose || c.Log == nil {
		return
	}
	fmt.Fprintf(c.Log, "odinc: info: "+format+"\n", args...)
}

// SetTarget configures the compiler for a specific OS, architecture and QBE target.
func (c *Config) SetTarget(goos, goarch, qbeTarget string) {
	if qbeTarget == "" {
		c.QbeTarget = libqbe.DefaultTarget(goos, goarch)
		c.Infof("no target specified, defaulting to host target '%s'", c.QbeTarget)
	} else {
		c.QbeTarget = qbeTarget
		c.Infof("using specified target '%s'", c.QbeTarget)
	}

	c.TargetOS, c.TargetArch = goos, goarch

	switch c.QbeTarget {
	case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
		c.WordSize, c.WordType, c.StackAlignment, c.MaxAlign = 8, "l", 16, 16
	case "arm", "rv32":
		c.WordSize, c.WordType, c.StackAlignment, c.MaxAlign = 4, "w", 8, 8
	default:
		if c.Log != nil {
			fmt.Fprintf(c.Log, "odinc: warning: unrecognized or unsupported QBE target '%s'.\n", c.QbeTarget)
			fmt.Fprintf(c.Log, "odinc: warning: defaulting to 64-bit properties. Compilation may fail.\n")
		}
		c.WordSize, c.WordType, c.StackAlignment, c.MaxAlign = 8, "l", 16, 16
	}

	switch goos {
	case "windows":
		c.ABI = types.ABIWindows
	case "linux", "freebsd", "openbsd", "netbsd":
		c.ABI = types.ABILinux
	default:
		c.ABI = types.ABIUnknown
	}
}

// Sizes is the size and alignment description shared by every phase.
func (c *Config) Sizes() types.Sizes {
	return types.Sizes{WordSize: int64(c.WordSize), MaxAlign: c.MaxAlign}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

func (c *Config) applyFlag(flag string) {
	trimmed := strings.TrimPrefix(flag, "-")
	isNo := strings.HasPrefix(trimmed, "Wno-") || strings.HasPrefix(trimmed, "Fno-")
	enable := !isNo

	var name string
	var isWarning bool

	switch {
	case strings.HasPrefix(trimmed, "W"):
		name = strings.TrimPrefix(trimmed, "W")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
		isWarning = true
	case strings.HasPrefix(trimmed, "F"):
		name = strings.TrimPrefix(trimmed, "F")
		if isNo {
			name = strings.TrimPrefix(name, "no-")
		}
	default:
		name = trimmed
		isWarning = true
	}

	if name == "all" && isWarning {
		for i := Warning(0); i < WarnCount; i++ {
			if i != WarnPedantic {
				c.SetWarning(i, enable)
			}
		}
		return
	}

	if isWarning {
		if w, ok := c.WarningMap[name]; ok {
			c.SetWarning(w, enable)
		}
	} else {
		if f, ok := c.FeatureMap[name]; ok {
			c.SetFeature(f, enable)
		}
	}
}

// ApplyFlags applies -W/-F style flags. `-Wall` and `-Wno-all` are applied
// first so that individual flags can override them regardless of order.
func (c *Config) ApplyFlags(flags []string) {
	isGlobal := func(f string) bool {
		f = strings.TrimPrefix(f, "-")
		return f == "Wall" || f == "Wno-all"
	}
	for _, f := range flags {
		if isGlobal(f) {
			c.applyFlag(f)
		}
	}
	for _, f := range flags {
		if !isGlobal(f) {
			c.applyFlag(f)
		}
	}
}

// ProcessDirectiveFlags applies a whitespace separated flag string.
func (c *Config) ProcessDirectiveFlags(flagStr string) {
	c.ApplyFlags(strings.Fields(flagStr))
}
