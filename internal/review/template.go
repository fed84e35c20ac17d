package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/catalogdesk/internal/kv"
)

// ErrEmptyTemplate is returned when saving blank template text.
var ErrEmptyTemplate = errors.New("template text is empty")

// DefaultTemplate is used until an operator saves their own.
const DefaultTemplate = `# {{postTitle}}

We tested {{productCount}} products so you don't have to. Updated {{date}}.

{{#each products}}
## {{index}}. {{title}}

**Price:** {{price}} | **Rating:** {{rating}} ({{reviewCount}} reviews)

[Check the latest price]({{url}})

{{/each}}
`

// TemplateStore keeps the operator's template text in the KV cache.
type TemplateStore struct {
	store  kv.Store
	logger *slog.Logger
}

// NewTemplateStore returns a TemplateStore. logger may be nil.
func NewTemplateStore(store kv.Store, logger *slog.Logger) *TemplateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateStore{store: store, logger: logger}
}

// Load returns the saved template, or DefaultTemplate when none is saved or
// the saved blob has an unknown schema version.
func (s *TemplateStore) Load(ctx context.Context) (string, error) {
	var text string
	err := s.store.Get(ctx, kv.KeyTemplate, &text)
	switch {
	case err == nil:
		return text, nil
	case errors.Is(err, kv.ErrNotFound):
		return DefaultTemplate, nil
	case errors.Is(err, kv.ErrSchemaVersion):
		s.logger.Warn("ignoring saved review template", "error", err)
		return DefaultTemplate, nil
	default:
		return "", fmt.Errorf("load review template: %w", err)
	}
}

// Save stores text as the template.
func (s *TemplateStore) Save(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyTemplate
	}
	if err := s.store.Set(ctx, kv.KeyTemplate, text); err != nil {
		return fmt.Errorf("save review template: %w", err)
	}
	return nil
}

// Reset discards the saved template so Load returns the default again.
func (s *TemplateStore) Reset(ctx context.Context) error {
	if err := s.store.Delete(ctx, kv.KeyTemplate); err != nil {
		return fmt.Errorf("reset review template: %w", err)
	}
	return nil
}
