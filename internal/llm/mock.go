package llm

import (
	"context"

	"github.com/evokedlab/evoked/internal/domain"
)

// MockClient is a configurable classifier client for testing. Set the
// response fields to control what SuggestGrouping returns.
type MockClient struct {
	SuggestResponse *domain.GroupingSuggestion
	SuggestError    error

	// Call tracking for assertions
	SuggestCalls []domain.FieldDigest
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) SuggestGrouping(ctx context.Context, digest domain.FieldDigest) (*domain.GroupingSuggestion, error) {
	c.SuggestCalls = append(c.SuggestCalls, digest)
	if c.SuggestError != nil {
		return nil, c.SuggestError
	}
	return c.SuggestResponse, nil
}

// Reset clears recorded calls and configured responses.
func (c *MockClient) Reset() {
	c.SuggestResponse = nil
	c.SuggestError = nil
	c.SuggestCalls = nil
}
