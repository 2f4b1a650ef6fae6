package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"printshop/internal/domain"
)

// ErrAdapterUnavailable covers every way semantic ranking can fail:
// transport errors, timeouts, an open circuit, malformed or empty output.
var ErrAdapterUnavailable = errors.New("semantic adapter unavailable")

// Ranker selects and orders the candidates relevant to a query
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error)
}

const rankSystemPrompt = `You are a search assistant for an online print shop. ` +
	`Given a search query and a list of products, return only the products relevant to the query, ` +
	`most relevant first. Copy each product name and description exactly as given. ` +
	`Reply with a JSON object of the form {"products":[{"name":"...","description":"..."}]}.`

var rankPrompt = template.Must(template.New("rank").Parse(
	`Search query: {{.Query}}

Products:
{{range .Candidates}}- Name: {{.Name}}
  Description: {{.Description}}
{{end}}`))

type llmRanker struct {
	completer Completer
}

// NewRanker creates a ranker backed by a language model
func NewRanker(completer Completer) Ranker {
	return &llmRanker{completer: completer}
}

func (r *llmRanker) Rank(ctx context.Context, query string, candidates []domain.Candidate) ([]domain.Candidate, error) {
	var prompt bytes.Buffer
	if err := rankPrompt.Execute(&prompt, struct {
		Query      string
		Candidates []domain.Candidate
	}{query, candidates}); err != nil {
		return nil, fmt.Errorf("%w: failed to render prompt: %v", ErrAdapterUnavailable, err)
	}

	reply, err := r.completer.Complete(ctx, rankSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}

	ranked, err := ParseRanking(reply)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}
	return ranked, nil
}

// ParseRanking validates a model reply of the form
// {"products":[{"name":string,"description":string}, ...]}.
// Extra or missing keys, non-string values and an empty list are rejected.
func ParseRanking(reply string) ([]domain.Candidate, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFence(reply)), &envelope); err != nil {
		return nil, fmt.Errorf("reply is not a JSON object: %w", err)
	}

	raw, ok := envelope["products"]
	if !ok {
		return nil, errors.New(`reply has no "products" field`)
	}

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf(`"products" is not an array of objects: %w`, err)
	}
	if len(items) == 0 {
		return nil, errors.New("reply contains no products")
	}

	out := make([]domain.Candidate, 0, len(items))
	for i, item := range items {
		if item == nil {
			return nil, fmt.Errorf("product %d is null", i)
		}
		if len(item) != 2 {
			return nil, fmt.Errorf("product %d must have exactly name and description", i)
		}
		name, err := stringField(item, "name")
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		description, err := stringField(item, "description")
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", i, err)
		}
		out = append(out, domain.Candidate{Name: name, Description: description})
	}

	return out, nil
}

func stringField(item map[string]json.RawMessage, key string) (string, error) {
	raw, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing %q", key)
	}
	// json.Unmarshal accepts null into a string, so check the token first
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || trimmed[0] != '"' {
		return "", fmt.Errorf("%q is not a string", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%q is not a string: %w", key, err)
	}
	return s, nil
}

// stripFence removes a surrounding markdown code fence some models add
func stripFence(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
