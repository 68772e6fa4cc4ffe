package authz

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the global enforcement mode.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeShadow   Mode = "shadow"
	ModeEnforce  Mode = "enforce"
)

// FlagProvider supplies the current enforcement mode.
type FlagProvider interface {
	Mode() Mode
}

// StaticFlagProvider always reports the same mode.
type StaticFlagProvider Mode

func (s StaticFlagProvider) Mode() Mode {
	return sanitizeMode(Mode(s))
}

// FileFlagProvider loads authz flags from a YAML file. The file is parsed
// again only when its modification time changes.
type FileFlagProvider struct {
	path     string
	fallback Mode

	mu       sync.Mutex
	lastMode Mode
	modTime  time.Time
}

// NewFileFlagProvider returns a provider backed by a YAML config file.
func NewFileFlagProvider(path string, fallback Mode) *FileFlagProvider {
	return &FileFlagProvider{
		path:     path,
		fallback: sanitizeMode(fallback),
	}
}

type flagFile struct {
	Mode string `yaml:"mode"`
}

func (p *FileFlagProvider) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.path)
	if err != nil {
		if p.lastMode == "" {
			p.lastMode = p.fallback
		}
		return p.lastMode
	}
	if p.lastMode != "" && info.ModTime().Equal(p.modTime) {
		return p.lastMode
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if p.lastMode == "" {
			p.lastMode = p.fallback
		}
		return p.lastMode
	}
	var cfg flagFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return p.fallback
	}
	p.lastMode = sanitizeMode(Mode(cfg.Mode))
	p.modTime = info.ModTime()
	return p.lastMode
}

func sanitizeMode(mode Mode) Mode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(ModeDisabled):
		return ModeDisabled
	case string(ModeEnforce):
		return ModeEnforce
	default:
		return ModeShadow
	}
}
