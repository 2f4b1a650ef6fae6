package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Describer writes marketing copy for a product from a short admin prompt
type Describer interface {
	Describe(ctx context.Context, prompt string) (string, error)
}

const describeSystemPrompt = `You write product descriptions for an online print shop. ` +
	`Write one or two sentences of persuasive, concrete copy based on the admin's notes. ` +
	`Reply with a JSON object of the form {"description":"..."}.`

type llmDescriber struct {
	completer Completer
}

// NewDescriber creates a describer backed by a language model
func NewDescriber(completer Completer) Describer {
	return &llmDescriber{completer: completer}
}

func (d *llmDescriber) Describe(ctx context.Context, prompt string) (string, error) {
	reply, err := d.completer.Complete(ctx, describeSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}

	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFence(reply)), &out); err != nil {
		return "", fmt.Errorf("%w: reply is not a JSON object: %v", ErrAdapterUnavailable, err)
	}

	description, err := stringField(out, "description")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAdapterUnavailable, err)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("%w: empty description", ErrAdapterUnavailable)
	}

	return description, nil
}
