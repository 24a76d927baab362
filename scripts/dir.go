package scripts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"laughprop/obj"
)

//go:embed definitions/*.yaml
var bundled embed.FS

// DefaultScripts parses the mini-games shipped with the binary
// (definitions/*.yaml), keyed by file name minus extension.
func DefaultScripts() (map[string]obj.Script, error) {
	entries, err := bundled.ReadDir("definitions")
	if err != nil {
		return nil, fmt.Errorf("reading bundled scripts: %w", err)
	}
	out := make(map[string]obj.Script)
	for _, entry := range entries {
		data, err := bundled.ReadFile(filepath.Join("definitions", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading bundled script %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		script, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing bundled script %s: %w", entry.Name(), err)
		}
		out[name] = script
	}
	return out, nil
}

// LoadDir parses every *.yaml/*.yml file directly under dir into a script
// registry keyed by file name minus extension (e.g. "icebreaker.yaml"
// registers as "icebreaker", addressable by ChooseGame's name field).
func LoadDir(dir string) (map[string]obj.Script, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading script directory %s: %w", dir, err)
	}
	out := make(map[string]obj.Script)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading script %s: %w", entry.Name(), err)
		}
		script, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parsing script %s: %w", entry.Name(), err)
		}
		out[name] = script
	}
	return out, nil
}
