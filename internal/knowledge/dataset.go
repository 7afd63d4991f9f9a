package knowledge

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed data/knowledge.yaml
var defaultDataset []byte

type dataset struct {
	Topics []struct {
		Name    string  `yaml:"name"`
		Entries []Entry `yaml:"entries"`
	} `yaml:"topics"`
}

// Parse decodes a YAML dataset grouped by topic.
func Parse(data []byte) ([]Entry, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode knowledge dataset: %w", err)
	}

	var entries []Entry
	for _, t := range ds.Topics {
		for _, e := range t.Entries {
			e.Topic = t.Name
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// LoadDefault builds the knowledge base compiled into the binary.
func LoadDefault() (*KnowledgeBase, error) {
	entries, err := Parse(defaultDataset)
	if err != nil {
		return nil, err
	}
	return New(entries)
}
