// Package augment produces human-readable descriptions for a tracked
// execution: its software, its computation and each dataset it touched.
package augment

import "context"

// Augmenter generates descriptions for one tracked execution. Callers must
// treat any error as "no descriptions" and fall back.
type Augmenter interface {
	Generate(ctx context.Context, req Request) (*Descriptions, error)
}

// Request is the material handed to a provider.
type Request struct {
	Code     string
	Language string
	// Outline lists the declarations of Code, one line each.
	Outline []string
	// InputFiles and OutputFiles map file name to absolute path.
	InputFiles  map[string]string
	OutputFiles map[string]string
}

// Descriptions is the provider response. Inputs and Outputs are keyed by
// file name.
type Descriptions struct {
	Software    string            `json:"software_description"`
	Computation string            `json:"computation_description"`
	Inputs      map[string]string `json:"input_datasets"`
	Outputs     map[string]string `json:"output_datasets"`
}
