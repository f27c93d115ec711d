package index

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/hashicorp-forge/hermes-indexqueue/pkg/work"
)

// workFile is the YAML or JSON input of the index command. Items is shorthand
// for a single batch.
type workFile struct {
	Batches []workBatch `yaml:"batches"`
	Items   []workItem  `yaml:"items"`
}

type workBatch struct {
	// Cancel discards the batch instead of performing it.
	Cancel bool       `yaml:"cancel"`
	Items  []workItem `yaml:"items"`
}

type workItem struct {
	Type   string         `yaml:"type"`
	ID     string         `yaml:"id"`
	Kind   string         `yaml:"kind"`
	Entity map[string]any `yaml:"entity"`
}

type batch struct {
	cancel bool
	works  []*work.Work
}

func loadWorkFile(fs afero.Fs, path string) ([]batch, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("unsupported work file format: %s (supported: .yaml, .yml, .json)", path)
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read work file: %w", err)
	}

	var wf workFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse work file: %w", err)
	}

	raw := wf.Batches
	if len(wf.Items) > 0 {
		raw = append([]workBatch{{Items: wf.Items}}, raw...)
	}

	batches := make([]batch, 0, len(raw))
	for i, rb := range raw {
		b := batch{cancel: rb.Cancel}
		for j, it := range rb.Items {
			w, err := it.work()
			if err != nil {
				return nil, fmt.Errorf("batch %d item %d: %w", i+1, j+1, err)
			}
			b.works = append(b.works, w)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func (it workItem) work() (*work.Work, error) {
	if it.Type == "" {
		return nil, fmt.Errorf("type is required")
	}

	kind, err := work.ParseKind(it.Kind)
	if err != nil {
		return nil, err
	}

	var entity any
	if it.Entity != nil {
		entity = it.Entity
	}
	return work.New(it.Type, it.ID, kind, entity), nil
}

// entityTypes returns the distinct entity types in batches in first-seen
// order.
func entityTypes(batches []batch) []string {
	var types []string
	seen := make(map[string]bool)
	for _, b := range batches {
		for _, w := range b.works {
			if !seen[w.EntityType] {
				seen[w.EntityType] = true
				types = append(types, w.EntityType)
			}
		}
	}
	return types
}
