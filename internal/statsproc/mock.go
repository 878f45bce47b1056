package statsproc

import "context"

// MockBackend permite tests sin interprete estadistico real.
type MockBackend struct {
	Output AnalysisOutput
	Err    error
}

func (m *MockBackend) Run(ctx context.Context, spec TestSpec, dataCSV []byte) (AnalysisOutput, error) {
	return m.Output, m.Err
}
