package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/solenoidlabs/recall/internal/chat"
	"github.com/solenoidlabs/recall/internal/provider"
)

const codegenSystemPrompt = `You are a data analysis assistant that writes complete, runnable Python scripts.`

const pathInjectionComment = "# IMPORTANT: Using the exact file path provided:"

// SampleLen bounds the data preview included in the generation prompt.
const SampleLen = 2000

func generatePrompt(filePath, sample, question string) string {
	return fmt.Sprintf(`Write a Python script that analyzes the data file to answer the user's question.

CRITICAL REQUIREMENTS:
1. Read the data from this exact file path, character for character: %s
2. Do not invent, shorten, or substitute any other path.
3. Print the findings that answer the question.
4. The script must run as-is with no placeholders.

Data sample (start of file):
%s

Question: %s

Respond with a single Python code block.`, filePath, sample, question)
}

func fixPrompt(filePath, code, errOutput string, missing []string) string {
	if len(missing) > 0 {
		return fmt.Sprintf(`The following Python script failed because these packages are unavailable even after installation: %s.
Rewrite it to answer the same question without those packages, using the standard library or packages that are certain to exist.
Keep reading the data from this exact file path: %s

Script:
%s

Error output:
%s

Respond with a single Python code block.`, strings.Join(missing, ", "), filePath, code, errOutput)
	}
	return fmt.Sprintf(`The following Python script failed. Fix the error and return the corrected script.
Keep reading the data from this exact file path: %s

Script:
%s

Error output:
%s

Respond with a single Python code block.`, filePath, code, errOutput)
}

func explainPrompt(question, code, output string) string {
	return fmt.Sprintf(`The script below was run to answer the question. Explain the results in plain language for the user.

Question: %s

Script:
%s

Output:
%s`, question, code, output)
}

// ExtractCode pulls the code out of a fenced completion. Without fences
// the whole completion is assumed to be code.
func ExtractCode(completion string) string {
	if idx := strings.Index(completion, "```python"); idx >= 0 {
		rest := completion[idx+len("```python"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	if idx := strings.Index(completion, "```"); idx >= 0 {
		rest := completion[idx+3:]
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(completion)
}

// EnsurePath repairs code that dropped the required file path: rather
// than rejecting the generation, the exact path is injected as a variable
// at the top so downstream reads can still reach the data.
func EnsurePath(code, filePath string) string {
	if strings.Contains(code, filePath) {
		return code
	}
	return fmt.Sprintf("%s %s\nfile_path = r\"%s\"\n%s", pathInjectionComment, filePath, filePath, code)
}

// GenerateAnalysisCode asks the model for a first script.
func GenerateAnalysisCode(ctx context.Context, p provider.Provider, filePath, sample, question string) (string, error) {
	if len(sample) > SampleLen {
		sample = sample[:SampleLen]
	}
	c := chat.NewContext(codegenSystemPrompt)
	c.Temperature = 0.2
	c.AddMessage(chat.RoleUser, generatePrompt(filePath, sample, question))

	out, err := p.Generate(ctx, c)
	if err != nil {
		return "", fmt.Errorf("generate analysis code: %w", err)
	}
	code := ExtractCode(out)
	if code == "" {
		return "", fmt.Errorf("generate analysis code: empty completion")
	}
	return EnsurePath(code, filePath), nil
}

// FixAnalysisCode asks the model to repair a failing script. A non-empty
// missing list switches to the "work without those packages" variant.
func FixAnalysisCode(ctx context.Context, p provider.Provider, filePath, code, errOutput string, missing []string) (string, error) {
	c := chat.NewContext(codegenSystemPrompt)
	c.Temperature = 0.2
	c.AddMessage(chat.RoleUser, fixPrompt(filePath, code, errOutput, missing))

	out, err := p.Generate(ctx, c)
	if err != nil {
		return "", fmt.Errorf("fix analysis code: %w", err)
	}
	fixed := ExtractCode(out)
	if fixed == "" {
		return "", fmt.Errorf("fix analysis code: empty completion")
	}
	return EnsurePath(fixed, filePath), nil
}

// ExplainResults turns raw script output into a user-facing explanation.
// On failure the raw output is still usable, so the error is returned
// alongside an empty string for the caller to decide.
func ExplainResults(ctx context.Context, p provider.Provider, question, code, output string) (string, error) {
	c := chat.NewContext("You explain data analysis results clearly and concisely.")
	c.AddMessage(chat.RoleUser, explainPrompt(question, code, output))

	out, err := p.Generate(ctx, c)
	if err != nil {
		return "", fmt.Errorf("explain results: %w", err)
	}
	return strings.TrimSpace(out), nil
}
