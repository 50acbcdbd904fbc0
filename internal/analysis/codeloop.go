package analysis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/solenoidlabs/recall/internal/provider"
)

// DefaultMaxAttempts bounds the execute/fix loop.
const DefaultMaxAttempts = 5

// CodeAnalysis is the outcome of an AnalyzeWithCode run. Failed is set
// when every attempt was exhausted; Answer then carries the terminal
// failure message instead of an analysis.
type CodeAnalysis struct {
	Answer   string
	Code     string
	Output   string
	Attempts int
	Failed   bool
}

// AnalyzeWithCode answers a question about a data file by generating a
// Python script, executing it, and repairing failures, up to maxAttempts
// executions. Missing packages are installed once and the same script is
// retried without regeneration; any other failure goes through a fix
// pass. The file path is never altered between attempts. Exhaustion is
// reported as a normal result, not an error: only inability to produce
// the first script errors out.
func AnalyzeWithCode(ctx context.Context, p provider.Provider, exec Executor, filePath, question string, maxAttempts int) (*CodeAnalysis, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	sample := readSample(filePath)
	code, err := GenerateAnalysisCode(ctx, p, filePath, sample, question)
	if err != nil {
		return nil, err
	}

	installed := make(map[string]bool)
	var lastOutput string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result := exec.Execute(ctx, code)
		lastOutput = result.Output

		if result.Success {
			answer, err := ExplainResults(ctx, p, question, code, result.Output)
			if err != nil {
				log.Printf("[analysis] explanation failed, returning raw output: %v", err)
				answer = "Analysis output:\n" + result.Output
			}
			return &CodeAnalysis{
				Answer:   answer,
				Code:     code,
				Output:   result.Output,
				Attempts: attempt,
			}, nil
		}

		missing := newPackages(result.MissingPackages, installed)
		if len(missing) > 0 {
			ok, installOut := exec.Install(ctx, missing)
			for _, pkg := range missing {
				installed[pkg] = true
			}
			if ok {
				// The script itself may be fine; re-run it as-is.
				continue
			}
			log.Printf("[analysis] install failed: %s", strings.TrimSpace(installOut))
			code, err = FixAnalysisCode(ctx, p, filePath, code, result.Output, missing)
			if err != nil {
				log.Printf("[analysis] fix pass failed, retrying previous code: %v", err)
			}
			continue
		}

		fixed, err := FixAnalysisCode(ctx, p, filePath, code, result.Output, nil)
		if err != nil {
			log.Printf("[analysis] fix pass failed, retrying previous code: %v", err)
			continue
		}
		code = fixed
	}

	return &CodeAnalysis{
		Answer: fmt.Sprintf(
			"I wasn't able to generate working code to analyze this data after %d attempts. The last error was:\n%s\nYou might try rephrasing your question or checking the data format.",
			maxAttempts, strings.TrimSpace(lastOutput)),
		Code:     code,
		Output:   lastOutput,
		Attempts: maxAttempts,
		Failed:   true,
	}, nil
}

func newPackages(found []string, installed map[string]bool) []string {
	var out []string
	for _, pkg := range found {
		if !installed[pkg] {
			out = append(out, pkg)
		}
	}
	return out
}

func readSample(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, SampleLen)
	n, _ := f.Read(buf)
	return string(buf[:n])
}
