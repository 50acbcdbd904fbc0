// Package analysis runs the document-analysis orchestrations: planned
// multi-document synthesis and the generate/execute/fix code-analysis
// loop backed by a Python subprocess.
package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultExecTimeout    = 60 * time.Second
	DefaultInstallTimeout = 120 * time.Second
)

// ExecResult is the outcome of one code execution.
type ExecResult struct {
	Success         bool
	Output          string // combined stdout and stderr
	MissingPackages []string
}

// Executor runs generated analysis code and installs its dependencies.
type Executor interface {
	Execute(ctx context.Context, code string) ExecResult
	Install(ctx context.Context, packages []string) (bool, string)
}

// PythonExecutor executes code with a Python interpreter in a scratch
// directory.
type PythonExecutor struct {
	PythonBin      string
	WorkDir        string
	ExecTimeout    time.Duration
	InstallTimeout time.Duration

	lastCode string
}

func NewPythonExecutor(pythonBin, workDir string) *PythonExecutor {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	return &PythonExecutor{
		PythonBin:      pythonBin,
		WorkDir:        workDir,
		ExecTimeout:    DefaultExecTimeout,
		InstallTimeout: DefaultInstallTimeout,
	}
}

// Execute writes code to a temp file and runs it. A timeout or non-zero
// exit is a failure with the combined output preserved for the fix pass.
func (e *PythonExecutor) Execute(ctx context.Context, code string) ExecResult {
	e.lastCode = code

	tmp, err := os.CreateTemp(e.WorkDir, "analysis-*.py")
	if err != nil {
		return ExecResult{Output: fmt.Sprintf("create temp file: %v", err)}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return ExecResult{Output: fmt.Sprintf("write temp file: %v", err)}
	}
	tmp.Close()

	timeout := e.ExecTimeout
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.PythonBin, tmp.Name())
	cmd.Dir = e.WorkDir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err = cmd.Run()

	output := buf.String()
	if runCtx.Err() == context.DeadlineExceeded {
		return ExecResult{Output: output + "\nexecution timed out after " + timeout.String()}
	}
	if err != nil {
		return ExecResult{
			Output:          output,
			MissingPackages: ParseMissingPackages(output),
		}
	}
	return ExecResult{Success: true, Output: output}
}

// Install pip-installs the packages. All packages go in one invocation;
// pip resolves them together.
func (e *PythonExecutor) Install(ctx context.Context, packages []string) (bool, string) {
	if len(packages) == 0 {
		return true, ""
	}
	timeout := e.InstallTimeout
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{"-m", "pip", "install"}, packages...)
	cmd := exec.CommandContext(runCtx, e.PythonBin, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()

	output := buf.String()
	if runCtx.Err() == context.DeadlineExceeded {
		return false, output + "\ninstall timed out after " + timeout.String()
	}
	if err != nil {
		log.Printf("[analysis] pip install %v failed: %v", packages, err)
		return false, output
	}
	return true, output
}

// LastCode returns the most recently executed code, kept for debugging.
func (e *PythonExecutor) LastCode() string { return e.lastCode }

// ParseMissingPackages scans interpreter output for import failures and
// returns the missing module names in first-seen order without
// duplicates.
func ParseMissingPackages(output string) []string {
	var packages []string
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "ModuleNotFoundError: No module named") &&
			!strings.Contains(line, "ImportError: No module named") {
			continue
		}
		parts := strings.Split(line, "'")
		if len(parts) < 2 {
			continue
		}
		// Submodule imports report "pkg.sub"; pip wants the root package.
		name := strings.SplitN(parts[1], ".", 2)[0]
		if name != "" && !seen[name] {
			seen[name] = true
			packages = append(packages, name)
		}
	}
	return packages
}

// WriteCombinedFile joins named document texts into one scratch file with
// per-document section markers, returning its path. The caller owns
// cleanup of the directory.
func WriteCombinedFile(dir string, names []string, contents []string) (string, error) {
	if len(names) != len(contents) {
		return "", fmt.Errorf("write combined file: %d names for %d contents", len(names), len(contents))
	}
	var sb strings.Builder
	for i, name := range names {
		fmt.Fprintf(&sb, "## DOCUMENT %d: %s\n", i+1, name)
		sb.WriteString(contents[i])
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("=", 80))
		sb.WriteString("\n")
	}
	path := filepath.Join(dir, "combined_documents.txt")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", fmt.Errorf("write combined file: %w", err)
	}
	return path, nil
}
