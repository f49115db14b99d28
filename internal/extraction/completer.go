// Package extraction turns free-form statement text into candidate
// transaction records using a chat-completion model.
package extraction

import (
	"context"
	"fmt"

	"github.com/dvloznov/smart-ledger/internal/config"
)

// Completer is a single structured-output model call. The system prompt
// fixes the output contract; user carries the statement text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewCompleter selects the model backend named by cfg.Provider.
func NewCompleter(ctx context.Context, cfg config.AI) (Completer, error) {
	switch cfg.Provider {
	case "siliconflow", "openai", "":
		return NewOpenAICompleter(cfg)
	case "gemini":
		return NewGeminiCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("NewCompleter: unknown provider %q", cfg.Provider)
	}
}
