package oracle

import (
	"context"
)

// MockOracle is a configurable oracle for testing. Set Response or Err to
// control what Complete returns; Calls records every prompt it saw.
type MockOracle struct {
	Response string
	Err      error

	Calls []string
}

func NewMockOracle(response string) *MockOracle {
	return &MockOracle{Response: response}
}

func (o *MockOracle) Complete(ctx context.Context, prompt string) (string, error) {
	o.Calls = append(o.Calls, prompt)
	if o.Err != nil {
		return "", o.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return o.Response, nil
}
