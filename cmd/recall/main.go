package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/solenoidlabs/recall/internal/app"
	"github.com/solenoidlabs/recall/internal/config"
	"github.com/solenoidlabs/recall/internal/memory"
	"github.com/spf13/cobra"
)

// AppFactory creates the assistant backend (allows mocking in tests)
type AppFactory func(cfg *config.Config) (*app.App, error)

// DefaultAppFactory wires the real provider, index and history
func DefaultAppFactory(cfg *config.Config) (*app.App, error) {
	return app.New(cfg)
}

// ChatOptions for running chat with custom dependencies
type ChatOptions struct {
	AppFactory AppFactory
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "recall - conversational assistant with layered memory",
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat in single message or REPL mode",
	RunE:  runChat,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file...]",
	Short: "Analyze documents with the model, optionally via generated code",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var exportCmd = &cobra.Command{
	Use:   "export <chat-id> [output.json]",
	Short: "Export a conversation to a portable hub file",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <hub.json> [chat-id]",
	Short: "Import a hub file into the conversation log",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runImport,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recall status",
	RunE:  runStatus,
}

var (
	messageFlag  string
	filesFlag    []string
	questionFlag string
	codeFlag     bool
	deepFlag     bool
	titleFlag    string
)

func init() {
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	chatCmd.Flags().StringSliceVarP(&filesFlag, "file", "f", nil, "Document to ingest before chatting (repeatable)")
	analyzeCmd.Flags().StringVarP(&questionFlag, "question", "q", "", "Question to answer about the documents")
	analyzeCmd.Flags().BoolVar(&codeFlag, "code", false, "Answer by generating and executing analysis code")
	analyzeCmd.Flags().BoolVar(&deepFlag, "deep", false, "Use hierarchical summarization for long documents")
	exportCmd.Flags().StringVar(&titleFlag, "title", "", "Title stored in the export metadata")
	rootCmd.AddCommand(chatCmd, analyzeCmd, exportCmd, importCmd, onboardCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runChat is the command handler that uses default options
func runChat(cmd *cobra.Command, args []string) error {
	return runChatWithOptions(ChatOptions{})
}

// runChatWithOptions runs the chat loop with injectable dependencies for testing
func runChatWithOptions(opts ChatOptions) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	factory := opts.AppFactory
	if factory == nil {
		factory = DefaultAppFactory
	}

	a, err := factory(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	const sessionID = "cli"
	for _, path := range filesFlag {
		name, err := a.IngestFile(ctx, sessionID, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "Ingested: %s\n", name)
	}

	// Single message mode
	if messageFlag != "" {
		out, err := handleLine(ctx, a, sessionID, messageFlag)
		if err != nil {
			return fmt.Errorf("chat error: %w", err)
		}
		fmt.Fprintln(stdout, out)
		return nil
	}

	// REPL mode
	fmt.Fprintln(stdout, "recall chat (type 'exit' to quit)")
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprint(stdout, "\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		out, err := handleLine(ctx, a, sessionID, input)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(stdout, out)
	}
	return nil
}

// handleLine routes analysis commands to the command runner and
// everything else through the normal conversation path.
func handleLine(ctx context.Context, a *app.App, sessionID, input string) (string, error) {
	if strings.HasPrefix(input, "/ingest ") {
		path := strings.TrimSpace(strings.TrimPrefix(input, "/ingest "))
		name, err := a.IngestFile(ctx, sessionID, path)
		if err != nil {
			return "", err
		}
		return "Ingested: " + name, nil
	}
	if app.IsCommand(input) {
		return a.RunCommand(ctx, input)
	}
	result, err := a.ProcessTurn(ctx, sessionID, input)
	if err != nil {
		return "", err
	}
	return result.Response, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return runAnalyzeWithOptions(ChatOptions{}, args)
}

// runAnalyzeWithOptions runs the analyze command with injectable
// dependencies for testing.
func runAnalyzeWithOptions(opts ChatOptions, args []string) error {
	if questionFlag == "" {
		return fmt.Errorf("a question is required (use -q)")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	factory := opts.AppFactory
	if factory == nil {
		factory = DefaultAppFactory
	}
	a, err := factory(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	ctx := context.Background()

	if codeFlag {
		if len(args) != 1 {
			return fmt.Errorf("--code takes exactly one data file")
		}
		result, err := a.AnalyzeFileWithCode(ctx, args[0], questionFlag)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		fmt.Fprintln(stdout, result.Answer)
		return nil
	}

	const sessionID = "analyze"
	names := make([]string, 0, len(args))
	for _, path := range args {
		name, err := a.IngestFile(ctx, sessionID, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		names = append(names, name)
	}

	if deepFlag {
		if len(names) != 1 {
			return fmt.Errorf("--deep takes exactly one document")
		}
		answer, err := a.AnalyzeHierarchical(ctx, names[0], questionFlag)
		if err != nil {
			return fmt.Errorf("analyze: %w", err)
		}
		fmt.Fprintln(stdout, answer)
		return nil
	}

	answer, err := a.AnalyzeDocuments(ctx, names, questionFlag)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	fmt.Fprintln(stdout, answer)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	h, err := memory.OpenHistory(cfg.Memory.DBPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer h.Close()

	hub, err := h.ExportHub(args[0], titleFlag)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(hub, "", "  ")
	if err != nil {
		return fmt.Errorf("encode hub: %w", err)
	}

	if len(args) == 2 {
		if err := os.WriteFile(args[1], data, 0644); err != nil {
			return fmt.Errorf("write hub: %w", err)
		}
		fmt.Printf("Exported %d messages to %s\n", len(hub.Messages), args[1])
		return nil
	}
	fmt.Println(string(data))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read hub: %w", err)
	}

	hub, err := memory.ParseHub(data)
	if err != nil {
		return err
	}

	chatID := hub.ChatID
	if len(args) == 2 {
		chatID = args[1]
	}

	h, err := memory.OpenHistory(cfg.Memory.DBPath)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer h.Close()

	if err := h.ImportHub(hub, chatID); err != nil {
		return err
	}
	fmt.Printf("Imported %d messages into chat %s\n", len(hub.Messages), chatID)
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to pick a provider and model\n", cfgPath)
	fmt.Println("  2. Or set RECALL_PROVIDER / RECALL_MODEL / RECALL_API_KEY")
	fmt.Println("  3. Run 'recall chat -m \"Hello\"' to test")

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Provider: %s\n", providerDisplay(cfg.Provider.Type))
	fmt.Printf("Model: %s\n", cfg.Provider.Model)
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set")
	}
	fmt.Printf("Embedding model: %s\n", embeddingDisplay(cfg.Embedding.Model))
	fmt.Printf("History DB: %s\n", cfg.Memory.DBPath)

	if _, err := os.Stat(cfg.Memory.DBPath); err != nil {
		fmt.Println("Conversations: none yet")
		return nil
	}
	h, err := memory.OpenHistory(cfg.Memory.DBPath)
	if err != nil {
		fmt.Printf("Conversations: error (%v)\n", err)
		return nil
	}
	defer h.Close()
	ids, _ := h.ChatIDs()
	fmt.Printf("Conversations: %d\n", len(ids))

	return nil
}

func providerDisplay(t string) string {
	if t == "" {
		return "ollama (default)"
	}
	return t
}

func embeddingDisplay(m string) string {
	if m == "" {
		return "hash (local fallback)"
	}
	return m
}
