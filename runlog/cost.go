package runlog

import (
	"fmt"
	"strconv"
	"strings"
)

// Rate prices one model's tokens, in USD per 1K.
type Rate struct {
	InputPer1K  float64 `json:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k"`
}

// Pricing maps model identifiers to token rates.
type Pricing map[string]Rate

// Cost prices a prompt/completion token pair for a model. Models
// without a registered rate cost zero.
func (p Pricing) Cost(model string, promptTokens, completionTokens int64) float64 {
	r, ok := p[model]
	if !ok {
		return 0
	}
	return (float64(promptTokens)/1000)*r.InputPer1K +
		(float64(completionTokens)/1000)*r.OutputPer1K
}

// SummaryCost prices a summary row against the rate for its key, so it
// is meaningful for queries grouped by model.
func (p Pricing) SummaryCost(s Summary) float64 {
	return p.Cost(s.Key, s.PromptTokens, s.CompletionTokens)
}

// ParsePricing parses "model=input:output" rate specs, with rates in
// USD per 1K tokens (e.g. "gpt-4=0.03:0.06").
func ParsePricing(specs []string) (Pricing, error) {
	p := make(Pricing, len(specs))
	for _, spec := range specs {
		model, rates, ok := strings.Cut(spec, "=")
		if !ok || model == "" {
			return nil, fmt.Errorf("bad price %q (want model=input:output)", spec)
		}
		in, out, ok := strings.Cut(rates, ":")
		if !ok {
			return nil, fmt.Errorf("bad price %q (want model=input:output)", spec)
		}
		inRate, err := strconv.ParseFloat(in, 64)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %v", spec, err)
		}
		outRate, err := strconv.ParseFloat(out, 64)
		if err != nil {
			return nil, fmt.Errorf("bad price %q: %v", spec, err)
		}
		p[model] = Rate{InputPer1K: inRate, OutputPer1K: outRate}
	}
	return p, nil
}
