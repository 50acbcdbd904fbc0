package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/solenoidlabs/recall/internal/analysis"
)

// AnalyzeDocuments answers a question across the named ingested
// documents via summarize/plan/synthesize.
func (a *App) AnalyzeDocuments(ctx context.Context, names []string, question string) (string, error) {
	return analysis.AnalyzeDocuments(ctx, a.provider, a.store, names, question)
}

// AnalyzeHierarchical deep-analyzes one ingested document, summarizing
// sections first when it is large.
func (a *App) AnalyzeHierarchical(ctx context.Context, name, question string) (string, error) {
	return analysis.AnalyzeHierarchical(ctx, a.provider, a.store, a.index, name, question)
}

// AnalyzeDocumentsWithCode runs the code-analysis loop over the named
// documents combined into one scratch file.
func (a *App) AnalyzeDocumentsWithCode(ctx context.Context, names []string, question string) (*analysis.CodeAnalysis, error) {
	return analysis.AnalyzeDocumentsWithCode(ctx, a.provider, a.executor, a.store, names, question, a.cfg.Analysis.MaxAttempts)
}

// AnalyzeFileWithCode runs the code-analysis loop directly against a
// file on disk.
func (a *App) AnalyzeFileWithCode(ctx context.Context, path, question string) (*analysis.CodeAnalysis, error) {
	return analysis.AnalyzeWithCode(ctx, a.provider, a.executor, path, question, a.cfg.Analysis.MaxAttempts)
}

// Command names accepted inside a chat input line.
const (
	cmdAnalyzeMulti     = "/analyze_multi"
	cmdDeepAnalyze      = "/deep_analyze"
	cmdAnalyzeMultiCode = "/analyze_multi_code"
)

// IsCommand reports whether a chat input line is an analysis command.
func IsCommand(text string) bool {
	t := strings.TrimSpace(text)
	return strings.HasPrefix(t, cmdAnalyzeMulti) || strings.HasPrefix(t, cmdDeepAnalyze)
}

// RunCommand parses and executes an analysis command line. Syntax:
//
//	/analyze_multi doc1,doc2 question...
//	/analyze_multi_code doc1,doc2 question...
//	/deep_analyze doc question...
func (a *App) RunCommand(ctx context.Context, text string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 3 {
		return "", fmt.Errorf("usage: %s <documents> <question>", fields[0])
	}
	cmd, docsArg := fields[0], fields[1]
	question := strings.Join(fields[2:], " ")
	names := strings.Split(docsArg, ",")

	switch cmd {
	case cmdAnalyzeMulti:
		return a.AnalyzeDocuments(ctx, names, question)
	case cmdAnalyzeMultiCode:
		res, err := a.AnalyzeDocumentsWithCode(ctx, names, question)
		if err != nil {
			return "", err
		}
		return res.Answer, nil
	case cmdDeepAnalyze:
		return a.AnalyzeHierarchical(ctx, names[0], question)
	default:
		return "", fmt.Errorf("unknown command %q", cmd)
	}
}
