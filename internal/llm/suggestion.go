package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evokedlab/evoked/internal/domain"
)

func renderDigestPrompt(digest domain.FieldDigest) (string, error) {
	fields, err := json.MarshalIndent(digest.Fields, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal field digest: %w", err)
	}
	return fmt.Sprintf(suggestGroupingPrompt, digest.SampleCount, string(fields)), nil
}

// parseSuggestion decodes the model's JSON reply, tolerating markdown
// fences. The caller still validates suggested field names against the
// discovered schema.
func parseSuggestion(result string) (*domain.GroupingSuggestion, error) {
	result = strings.TrimPrefix(result, "```json")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)

	if result == "" || result == "null" {
		return nil, nil
	}

	var suggestion domain.GroupingSuggestion
	if err := json.Unmarshal([]byte(result), &suggestion); err != nil {
		return nil, fmt.Errorf("parse grouping suggestion: %w (raw: %s)", err, result)
	}
	return &suggestion, nil
}
