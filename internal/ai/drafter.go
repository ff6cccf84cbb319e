// Package ai provides the draft-writing call used by the compose surface
// and the model client the reference server answers it with.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nhle/webmail/internal/provider"
)

// Drafter asks the mail API to write a message body from a prompt. The
// result is opaque text.
type Drafter struct {
	api provider.API
}

// NewDrafter creates a Drafter that calls through api.
func NewDrafter(api provider.API) *Drafter {
	return &Drafter{api: api}
}

// Draft sends prompt to POST /ai/draft and returns the generated text.
func (d *Drafter) Draft(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("empty prompt")
	}

	var text string
	if err := d.api.Post(ctx, "/ai/draft", DraftRequest{Prompt: prompt}, &text); err != nil {
		return "", fmt.Errorf("generating draft: %w", err)
	}
	return text, nil
}

// DraftRequest is the payload of POST /ai/draft.
type DraftRequest struct {
	Prompt string `json:"prompt"`
}

// AppendDraft adds generated text to an existing body, separated by a
// blank line.
func AppendDraft(body, generated string) string {
	if body == "" {
		return generated
	}
	return body + "\n\n" + generated
}
