package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/fgrng/yourmoment/internal/crypto"
	"github.com/fgrng/yourmoment/internal/domain"
	"github.com/fgrng/yourmoment/internal/llm"
	"github.com/fgrng/yourmoment/internal/repository"
)

// GenerationWorker renders a prompt template against an article snapshot,
// calls the configured LLM provider, and advances the item to generated.
type GenerationWorker struct {
	Items           repository.WorkItemRepository
	Templates       repository.PromptTemplateRepository
	ProviderConfigs repository.LLMProviderConfigRepository
	Providers       *llm.Registry
	Vault           *crypto.Vault
	// DisclosurePrefix is prepended to every generated comment, unless
	// already present.
	DisclosurePrefix string
}

func NewGenerationWorker(items repository.WorkItemRepository, templates repository.PromptTemplateRepository, providerConfigs repository.LLMProviderConfigRepository, providers *llm.Registry, vault *crypto.Vault, disclosurePrefix string) *GenerationWorker {
	return &GenerationWorker{
		Items:            items,
		Templates:        templates,
		ProviderConfigs:  providerConfigs,
		Providers:        providers,
		Vault:            vault,
		DisclosurePrefix: disclosurePrefix,
	}
}

func (w *GenerationWorker) Run(ctx context.Context, process *domain.Process) (Result, error) {
	start := time.Now()

	items, err := w.Items.ListByStage(ctx, process.ID, domain.StatusPrepared)
	if err != nil {
		return failedResult(fmt.Errorf("list prepared items: %w", err), start), nil
	}
	if len(items) == 0 {
		return newResult(0, 0, nil, start), nil
	}

	providerConfig, err := w.ProviderConfigs.Get(ctx, process.LLMProviderConfigID)
	if err != nil {
		return failedResult(fmt.Errorf("load LLM provider config: %w", err), start), nil
	}
	apiKey, err := w.Vault.Decrypt(providerConfig.EncryptedAPIKey)
	if err != nil {
		return failedResult(fmt.Errorf("decrypt provider API key: %w", err), start), nil
	}
	provider, err := w.Providers.Resolve(providerConfig.ProviderTag, apiKey)
	if err != nil {
		return failedResult(fmt.Errorf("%w: %v", ErrLLMProvider, err), start), nil
	}

	templates, err := w.loadTemplates(ctx, process.PromptTemplateIDs)
	if err != nil {
		return failedResult(err, start), nil
	}
	if len(templates) == 0 {
		return failedResult(fmt.Errorf("%w: process has no prompt templates", ErrValidation), start), nil
	}

	var advanced, failed int
	var errs []string

	for _, item := range items {
		tmpl := pickTemplate(templates, item.ID)
		if err := w.generateOne(ctx, item, tmpl, provider, providerConfig); err != nil {
			failed++
			errs = append(errs, fmt.Sprintf("item %s: %v", item.ID, err))
			if markErr := w.Items.MarkFailed(ctx, item.ID, err.Error()); markErr != nil {
				errs = append(errs, fmt.Sprintf("item %s: mark failed: %v", item.ID, markErr))
			}
			continue
		}
		advanced++
	}

	return newResult(advanced, failed, errs, start), nil
}

func (w *GenerationWorker) loadTemplates(ctx context.Context, ids []string) ([]*domain.PromptTemplate, error) {
	templates := make([]*domain.PromptTemplate, 0, len(ids))
	for _, id := range ids {
		t, err := w.Templates.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load prompt template %s: %w", id, err)
		}
		templates = append(templates, t)
	}
	return templates, nil
}

func (w *GenerationWorker) generateOne(ctx context.Context, item *domain.WorkItem, tmpl *domain.PromptTemplate, provider llm.Provider, providerConfig *domain.LLMProviderConfig) error {
	userPrompt := renderTemplate(tmpl.UserPromptTemplate, item)

	genStart := time.Now()
	text, tokens, err := provider.Generate(ctx, tmpl.SystemPrompt, userPrompt, providerConfig.ModelName, providerConfig.MaxTokens, providerConfig.Temperature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLLMProvider, err)
	}
	elapsed := time.Since(genStart)

	item.CommentText = applyDisclosurePrefix(text, w.DisclosurePrefix)
	item.LLMModelName = providerConfig.ModelName
	item.LLMProviderName = providerConfig.ProviderTag
	item.PromptTemplateID = tmpl.ID
	item.LLMProviderID = providerConfig.ID
	item.GenerationTokens = tokens
	item.GenerationTimeMs = elapsed.Milliseconds()

	if err := w.Items.UpdateToGenerated(ctx, item); err != nil {
		return fmt.Errorf("update to generated: %w", err)
	}
	return nil
}

// renderTemplate substitutes the closed placeholder set against an item's
// article snapshot. Markers outside the closed set are left untouched.
func renderTemplate(tmpl string, item *domain.WorkItem) string {
	replacer := strings.NewReplacer(
		"{"+domain.PlaceholderArticleTitle+"}", item.Title,
		"{"+domain.PlaceholderArticleContent+"}", item.ContentText,
		"{"+domain.PlaceholderArticleAuthor+"}", item.Author,
		"{"+domain.PlaceholderArticleRawHTML+"}", item.ContentHTML,
	)
	return replacer.Replace(tmpl)
}

// applyDisclosurePrefix prepends the AI disclosure prefix unless it is
// already present, so the prefix is never doubled on retries.
func applyDisclosurePrefix(text, prefix string) string {
	if prefix == "" || strings.HasPrefix(text, prefix) {
		return text
	}
	return prefix + " " + text
}

// pickTemplate deterministically selects one template per item from the
// process's configured set. Not specified by the source system; resolved
// here as a stable hash of the item id so re-running Generation on the same
// item (e.g. after a failed retry) always renders the same template.
func pickTemplate(templates []*domain.PromptTemplate, itemID string) *domain.PromptTemplate {
	h := fnv.New32a()
	h.Write([]byte(itemID))
	idx := int(h.Sum32()) % len(templates)
	if idx < 0 {
		idx += len(templates)
	}
	return templates[idx]
}
