package forest

import (
	"encoding/json"
	"fmt"
	"io"

	"soilnet-ml/internal/model"
)

const (
	formatName    = "soilnet-random-forest"
	formatVersion = 1
)

type document struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	Params  Params `json:"params"`
	Width   int    `json:"n_features"`
	Trees   []tree `json:"trees"`
}

// Codec stores forests as JSON. Float64 values round-trip exactly, so a
// loaded forest predicts bit-for-bit what the saved one did.
type Codec struct{}

var _ model.Codec = Codec{}

func (Codec) Save(w io.Writer, r model.Regressor) error {
	f, ok := r.(*Regressor)
	if !ok {
		return fmt.Errorf("forest codec: cannot encode %T", r)
	}
	if len(f.trees) == 0 {
		return model.ErrNotFitted
	}
	doc := document{
		Format:  formatName,
		Version: formatVersion,
		Params:  f.params,
		Width:   f.width,
		Trees:   f.trees,
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode forest: %w", err)
	}
	return nil
}

func (Codec) Load(rd io.Reader) (model.Regressor, error) {
	var doc document
	if err := json.NewDecoder(rd).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	if doc.Format != formatName {
		return nil, fmt.Errorf("decode forest: unexpected format %q", doc.Format)
	}
	if doc.Version != formatVersion {
		return nil, fmt.Errorf("decode forest: unsupported version %d", doc.Version)
	}
	if len(doc.Trees) == 0 || doc.Width <= 0 {
		return nil, fmt.Errorf("decode forest: %w", model.ErrNotFitted)
	}
	for i, t := range doc.Trees {
		if err := validTree(t, doc.Width); err != nil {
			return nil, fmt.Errorf("decode forest: tree %d: %w", i, err)
		}
	}
	return &Regressor{params: doc.Params, width: doc.Width, trees: doc.Trees}, nil
}

// validTree rejects trees that would index out of range or loop while predicting.
func validTree(t tree, width int) error {
	if len(t) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t {
		if n.Feature < 0 {
			continue
		}
		if n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d of %d", i, n.Feature, width)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t) || n.Right >= len(t) {
			return fmt.Errorf("node %d has invalid children %d, %d", i, n.Left, n.Right)
		}
	}
	return nil
}
