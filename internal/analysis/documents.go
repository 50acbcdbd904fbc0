package analysis

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/solenoidlabs/recall/internal/chat"
	"github.com/solenoidlabs/recall/internal/document"
	"github.com/solenoidlabs/recall/internal/enhance"
	"github.com/solenoidlabs/recall/internal/provider"
	"github.com/solenoidlabs/recall/internal/retrieval"
)

const (
	// summaryInputCap bounds the text fed to a per-document summary pass.
	summaryInputCap = 10000
	// hierarchicalThreshold is the document size above which analysis
	// goes through section summaries instead of the raw text.
	hierarchicalThreshold = 20000

	truncationMarker = "\n\n...[content truncated for length]"
)

func capContent(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + truncationMarker
}

func summarizeDocument(ctx context.Context, p provider.Provider, name, content, question string) (string, error) {
	c := chat.NewContext("You summarize documents precisely, keeping details relevant to the user's question.")
	c.AddMessage(chat.RoleUser, fmt.Sprintf(
		"Summarize the document below, emphasizing anything relevant to this question: %s\n\nDocument %s:\n%s",
		question, name, capContent(content, summaryInputCap)))
	out, err := p.Generate(ctx, c)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}

// AnalyzeDocuments answers a question spanning several ingested
// documents: per-document summaries run in parallel, a planning pass
// decides how to combine them, and a synthesis pass produces the final
// analysis. Any stage failing fails the whole run; a partial synthesis
// would silently answer from incomplete evidence.
func AnalyzeDocuments(ctx context.Context, p provider.Provider, store *document.Store, names []string, question string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("analyze documents: no documents named")
	}

	contents := make([]string, len(names))
	for i, name := range names {
		full := store.CompleteDocument(name)
		if full == "" {
			return "", fmt.Errorf("analyze documents: no ingested document matches %q", name)
		}
		contents[i] = full
	}

	summaries := make([]string, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i := range names {
		i := i
		g.Go(func() error {
			s, err := summarizeDocument(gctx, p, names[i], contents[i], question)
			if err != nil {
				return err
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var summaryBlock strings.Builder
	for i, name := range names {
		fmt.Fprintf(&summaryBlock, "### %s\n%s\n\n", name, summaries[i])
	}

	planCtx := chat.NewContext("You plan multi-document analyses step by step.")
	planCtx.AddMessage(chat.RoleUser, fmt.Sprintf(
		"Question: %s\n\nDocument summaries:\n%s\nWrite a short numbered plan for answering the question from these documents.",
		question, summaryBlock.String()))
	plan, err := p.Generate(ctx, planCtx)
	if err != nil {
		return "", fmt.Errorf("plan analysis: %w", err)
	}

	// Synthesis works from the complete documents; the summaries only
	// existed to keep the planning pass small.
	var contentBlock strings.Builder
	for i, name := range names {
		fmt.Fprintf(&contentBlock, "### %s\n%s\n\n", name, contents[i])
	}

	synthCtx := chat.NewContext("You synthesize answers across documents, citing which document supports each point.")
	synthCtx.AddMessage(chat.RoleUser, fmt.Sprintf(
		"Question: %s\n\nPlan:\n%s\n\nDocuments:\n%s\nFollow the plan and answer the question.",
		question, plan, contentBlock.String()))
	final, err := p.Generate(ctx, synthCtx)
	if err != nil {
		return "", fmt.Errorf("synthesize analysis: %w", err)
	}

	return fmt.Sprintf("# Multi-Document Analysis\n\n## Question\n%s\n\n## Analysis Plan\n%s\n\n## Analysis\n%s",
		question, strings.TrimSpace(plan), strings.TrimSpace(final)), nil
}

// AnalyzeHierarchical answers a question about one large document. Text
// over the threshold is summarized section by section before the final
// pass; retrieval over the index, keyed by an enhanced query and by a
// hypothetical answer passage, supplies focused evidence either way.
func AnalyzeHierarchical(ctx context.Context, p provider.Provider, store *document.Store, index *retrieval.Index, name, question string) (string, error) {
	full := store.CompleteDocument(name)
	if full == "" {
		return "", fmt.Errorf("analyze hierarchical: no ingested document matches %q", name)
	}

	body := full
	if len(full) > hierarchicalThreshold {
		var sections []string
		for start := 0; start < len(full); start += summaryInputCap {
			end := start + summaryInputCap
			if end > len(full) {
				end = len(full)
			}
			sections = append(sections, full[start:end])
		}
		summaries := make([]string, len(sections))
		g, gctx := errgroup.WithContext(ctx)
		for i := range sections {
			i := i
			g.Go(func() error {
				s, err := summarizeDocument(gctx, p, fmt.Sprintf("%s (section %d)", name, i+1), sections[i], question)
				if err != nil {
					return err
				}
				summaries[i] = s
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return "", err
		}
		body = strings.Join(summaries, "\n\n")
	}

	searchQuery := enhance.RewriteOrOriginal(ctx, p, question, enhance.ModeExpansion)
	evidence, err := index.Search(ctx, searchQuery, 5)
	if err != nil {
		evidence = nil
	}
	// A hypothetical answer passage is a second retrieval key: it often
	// lands nearer the answering text than the question itself does.
	// Like the primary search, failures here just narrow the evidence.
	if hyde, err := enhance.HydeDocument(ctx, p, question); err == nil {
		if more, err := index.Search(ctx, hyde, 5); err == nil {
			evidence = append(evidence, more...)
		}
	}
	seen := make(map[string]bool)
	var evidenceBlock strings.Builder
	for _, res := range evidence {
		if seen[res.Text] {
			continue
		}
		seen[res.Text] = true
		evidenceBlock.WriteString(res.Text)
		evidenceBlock.WriteString("\n\n")
	}

	c := chat.NewContext("You analyze documents thoroughly and answer with specifics from the text.")
	c.AddMessage(chat.RoleUser, fmt.Sprintf(
		"Question: %s\n\nDocument content:\n%s\n\nMost relevant passages:\n%s\nAnswer the question.",
		question, body, evidenceBlock.String()))
	out, err := p.Generate(ctx, c)
	if err != nil {
		return "", fmt.Errorf("hierarchical analysis: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// AnalyzeDocumentsWithCode combines the named documents into one scratch
// file and runs the code-analysis loop against it, for questions that
// need computation across documents rather than synthesis.
func AnalyzeDocumentsWithCode(ctx context.Context, p provider.Provider, exec Executor, store *document.Store, names []string, question string, maxAttempts int) (*CodeAnalysis, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("analyze documents with code: no documents named")
	}
	contents := make([]string, len(names))
	for i, name := range names {
		full := store.CompleteDocument(name)
		if full == "" {
			return nil, fmt.Errorf("analyze documents with code: no ingested document matches %q", name)
		}
		contents[i] = full
	}

	dir, err := os.MkdirTemp("", "recall-analysis-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	combined, err := WriteCombinedFile(dir, names, contents)
	if err != nil {
		return nil, err
	}
	return AnalyzeWithCode(ctx, p, exec, combined, question, maxAttempts)
}
