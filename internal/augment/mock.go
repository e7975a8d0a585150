package augment

import "context"

// Mock returns a fixed response, or Err when set.
type Mock struct {
	Response *Descriptions
	Err      error
	Calls    []Request
}

func (m *Mock) Generate(ctx context.Context, req Request) (*Descriptions, error) {
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Response == nil {
		return &Descriptions{Inputs: map[string]string{}, Outputs: map[string]string{}}, nil
	}
	return m.Response, nil
}
