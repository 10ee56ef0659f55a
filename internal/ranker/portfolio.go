package ranker

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Portfolio is the YAML document read by the rank command. Weights is
// optional and falls back to DefaultWeights.
type Portfolio struct {
	Weights Weights `yaml:"weights"`
	Stocks  []Input `yaml:"stocks"`
}

// ParsePortfolio decodes a portfolio document. Unknown fields are rejected
// so a misspelt input does not silently score as zero.
func ParsePortfolio(data []byte) (*Portfolio, error) {
	var p Portfolio
	if err := decodeStrict(data, &p); err != nil {
		return nil, fmt.Errorf("ranker: parse portfolio: %w", err)
	}
	if len(p.Stocks) == 0 {
		return nil, errors.New("ranker: portfolio has no stocks")
	}
	return &p, nil
}

// ParseWeights decodes a standalone weights document.
func ParseWeights(data []byte) (Weights, error) {
	var w Weights
	if err := decodeStrict(data, &w); err != nil {
		return nil, fmt.Errorf("ranker: parse weights: %w", err)
	}
	return w, nil
}

func decodeStrict(data []byte, target any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
