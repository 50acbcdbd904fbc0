// Package enhance rewrites user queries before retrieval: expansion,
// disambiguation, or synonym substitution, plus hypothetical-document
// generation. Callers treat every failure as "use the original query".
package enhance

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/solenoidlabs/recall/internal/chat"
	"github.com/solenoidlabs/recall/internal/provider"
)

// Rewrite modes.
const (
	ModeExpansion      = "expansion"
	ModeDisambiguation = "disambiguation"
	ModeSynonyms       = "synonyms"
)

// MaxRewriteLen caps the rewritten query; anything longer is cut to this
// many characters.
const MaxRewriteLen = 500

const (
	expansionPrompt = `You are a search query optimizer. Expand the user's query with closely related terms and context that improve document retrieval. Return only the expanded query text, nothing else.`

	disambiguationPrompt = `You are a search query optimizer. Rewrite the user's query to remove ambiguity, making the intended meaning explicit. Return only the rewritten query text, nothing else.`

	synonymsPrompt = `You are a search query optimizer. Rewrite the user's query using synonyms and alternative phrasings that match more documents. Return only the rewritten query text, nothing else.`

	genericPrompt = `You are a search query optimizer. Improve the user's query for document retrieval. Return only the improved query text, nothing else.`

	hydePrompt = `Write a short, factual passage that would plausibly appear in a document answering the user's question. Write the passage directly, with no preamble.`
)

func systemPromptFor(mode string) string {
	switch mode {
	case ModeExpansion:
		return expansionPrompt
	case ModeDisambiguation:
		return disambiguationPrompt
	case ModeSynonyms:
		return synonymsPrompt
	default:
		return genericPrompt
	}
}

// RewriteQuery asks the model to rewrite query according to mode. The
// result is stripped of wrapping quotes and truncated to MaxRewriteLen. An
// empty completion is an error so the caller's fallback engages.
func RewriteQuery(ctx context.Context, p provider.Provider, query, mode string) (string, error) {
	c := chat.NewContext(systemPromptFor(mode))
	c.MaxTokens = 256
	c.Temperature = 0.3
	c.AddMessage(chat.RoleUser, query)

	out, err := p.Generate(ctx, c)
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}
	cleaned := strings.Trim(strings.TrimSpace(out), "\"'")
	if cleaned == "" {
		return "", fmt.Errorf("rewrite query: empty completion")
	}
	if len(cleaned) > MaxRewriteLen {
		cleaned = cleaned[:MaxRewriteLen]
	}
	return cleaned, nil
}

// RewriteOrOriginal wraps RewriteQuery with the standard fallback: any
// error returns the original query untouched.
func RewriteOrOriginal(ctx context.Context, p provider.Provider, query, mode string) string {
	rewritten, err := RewriteQuery(ctx, p, query, mode)
	if err != nil {
		log.Printf("[enhance] falling back to original query: %v", err)
		return query
	}
	return rewritten
}

// HydeDocument generates a hypothetical answer passage for the query,
// usable as an alternative retrieval key.
func HydeDocument(ctx context.Context, p provider.Provider, query string) (string, error) {
	c := chat.NewContext(hydePrompt)
	c.MaxTokens = 512
	c.Temperature = 0.5
	c.AddMessage(chat.RoleUser, query)

	out, err := p.Generate(ctx, c)
	if err != nil {
		return "", fmt.Errorf("generate hypothetical document: %w", err)
	}
	return strings.TrimSpace(out), nil
}
