// Package assets carries the static engagement templates: reaction
// emoji sets, strategy phrase banks, the default bad-phrase list, and
// the curated warmup channels. Baked into the binary; an external file
// can replace them at startup.
package assets

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var embedded []byte

type Templates struct {
	Reactions      map[string][]string `yaml:"reactions"`
	WarmupChannels []string            `yaml:"warmup_channels"`
	Phrases        map[string][]string `yaml:"phrases"`
	BadPhrases     []string            `yaml:"bad_phrases"`
}

// Load parses the embedded templates, or the file at path when given.
func Load(path string) (*Templates, error) {
	data := embedded
	if path != "" {
		external, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read templates file: %w", err)
		}
		data = external
	}

	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if len(t.WarmupChannels) == 0 {
		return nil, fmt.Errorf("templates carry no warmup channels")
	}
	return &t, nil
}

// ReactionSet returns a named emoji set, falling back to default.
func (t *Templates) ReactionSet(name string) []string {
	if set, ok := t.Reactions[name]; ok && len(set) > 0 {
		return set
	}
	return t.Reactions["default"]
}

// PhrasesFor returns the comment phrase bank of a strategy, falling
// back to the observer bank.
func (t *Templates) PhrasesFor(strategy string) []string {
	if bank, ok := t.Phrases[strategy]; ok && len(bank) > 0 {
		return bank
	}
	return t.Phrases["observer"]
}
