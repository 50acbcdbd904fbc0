// Package app wires the assistant together: sessions, memory, documents,
// retrieval, analysis, and the per-turn pipeline. Everything is owned by
// the App value; nothing lives in package globals, so tests and embedders
// can run several instances side by side.
package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/solenoidlabs/recall/internal/analysis"
	"github.com/solenoidlabs/recall/internal/chat"
	"github.com/solenoidlabs/recall/internal/config"
	"github.com/solenoidlabs/recall/internal/cron"
	"github.com/solenoidlabs/recall/internal/document"
	"github.com/solenoidlabs/recall/internal/enhance"
	"github.com/solenoidlabs/recall/internal/memory"
	"github.com/solenoidlabs/recall/internal/provider"
	"github.com/solenoidlabs/recall/internal/retrieval"
)

const defaultSystemPrompt = `You are a helpful assistant with access to the user's uploaded documents and the conversation's memory. Answer from the provided context when it is relevant; say so when it is not.`

const degradedReply = "I ran into a problem generating a response. Please try again."

// TurnResult is what one processed turn hands back to the caller.
type TurnResult struct {
	SessionID string
	Response  string
	Evidence  []string // formatted document chunks used for the answer
}

// App is the assembled assistant.
type App struct {
	cfg       *config.Config
	provider  provider.Provider
	store     *document.Store
	index     *retrieval.Index
	retriever *retrieval.Retriever
	sessions  *memory.SessionManager
	history   *memory.History

	tasksMu sync.Mutex
	tasks   *memory.TaskRunner

	executor analysis.Executor
	loader   document.Loader
	splitter *document.Splitter
	schedule *cron.Service
}

// Option overrides a collaborator, mainly so tests and embedders can
// swap the provider, executor, or embedder for fakes.
type Option func(*options)

type options struct {
	provider provider.Provider
	executor analysis.Executor
	embedder retrieval.Embedder
	loader   document.Loader
}

func WithProvider(p provider.Provider) Option {
	return func(o *options) { o.provider = p }
}

func WithExecutor(e analysis.Executor) Option {
	return func(o *options) { o.executor = e }
}

func WithEmbedder(e retrieval.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

func WithLoader(l document.Loader) Option {
	return func(o *options) { o.loader = l }
}

// New builds an App from configuration, opening the conversation log and
// constructing the provider and embedder it names.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := o.provider
	if p == nil {
		var err error
		p, err = provider.New(cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("build provider: %w", err)
		}
	}

	history, err := memory.OpenHistory(cfg.Memory.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open conversation log: %w", err)
	}

	store := document.NewStore()
	embedder := o.embedder
	if embedder == nil {
		if cfg.Embedding.Model != "" {
			embedder = retrieval.NewEmbedder(cfg.Embedding)
		} else {
			embedder = retrieval.NewHashEmbedder()
		}
	}
	index := retrieval.NewIndex(embedder)

	executor := o.executor
	if executor == nil {
		executor = analysis.NewPythonExecutor(cfg.Analysis.PythonBin, cfg.Analysis.WorkDir)
	}
	loader := o.loader
	if loader == nil {
		loader = document.TextLoader{}
	}

	splitter := document.NewSplitter()
	splitter.ChunkSize = cfg.Documents.ChunkSize
	splitter.Overlap = cfg.Documents.ChunkOverlap

	a := &App{
		cfg:       cfg,
		provider:  p,
		store:     store,
		index:     index,
		retriever: retrieval.NewRetriever(index, store, cfg.Documents.TopK),
		sessions:  memory.NewSessionManager(cfg.Memory.ShortTermLimit),
		history:   history,
		tasks:     memory.NewTaskRunner(),
		executor:  executor,
		loader:    loader,
		splitter:  splitter,
		schedule:  cron.NewService(),
	}
	return a, nil
}

// Start begins background maintenance. Optional: an App without Start
// still serves turns.
func (a *App) Start(ctx context.Context) error {
	if err := a.schedule.AddJob(cron.Job{
		Name: "memory-maintenance",
		Spec: a.cfg.Memory.MaintenanceSpec,
		Run:  a.maintenanceSweep,
	}); err != nil {
		return err
	}
	return a.schedule.Start(ctx)
}

// Close stops maintenance, waits for in-flight background tasks, and
// closes the conversation log.
func (a *App) Close() error {
	a.schedule.Stop()
	a.runner().Close()
	return a.history.Close()
}

// runner hands out the current task runner; WaitBackground swaps it, so
// every reader goes through the lock.
func (a *App) runner() *memory.TaskRunner {
	a.tasksMu.Lock()
	defer a.tasksMu.Unlock()
	return a.tasks
}

// History exposes the conversation log for export and import commands.
func (a *App) History() *memory.History { return a.history }

// Store exposes the document store for status commands.
func (a *App) Store() *document.Store { return a.store }

// Sessions exposes the session table for status commands.
func (a *App) Sessions() *memory.SessionManager { return a.sessions }

// maintenanceSweep regenerates summaries for sessions that accumulated
// turns since their last summary and logs memory statistics.
func (a *App) maintenanceSweep(ctx context.Context) error {
	for _, s := range a.sessions.All() {
		stats := s.Memory.Stats()
		if stats.ShortTermCount == 0 {
			continue
		}
		summary := memory.SummarizeConversation(ctx, a.provider, s.Memory.RecentMessages(a.cfg.Memory.ShortTermLimit))
		if summary != memory.EmptySummarySentinel && summary != memory.ErrorSummarySentinel {
			s.Memory.AddSummary(summary)
		}
		log.Printf("[app] session %s memory: %d short-term, %d topics, %d summaries",
			s.ID, stats.ShortTermCount, stats.LongTermTopics, stats.SummaryCount)
	}
	return nil
}

// IngestFile loads, chunks, stores, and indexes a file, registering it on
// the session. It returns the document name (the base filename) that the
// store and the analyzers resolve documents by. Unlike the turn path,
// ingest errors surface immediately: they are caller mistakes or
// environment failures the user must see.
func (a *App) IngestFile(ctx context.Context, sessionID, path string) (string, error) {
	docs, err := a.loader.Load(path)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	var chunks []document.Document
	for _, d := range docs {
		chunks = append(chunks, a.splitter.SplitDocument(d)...)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("load %s: file is empty", path)
	}
	a.store.Add(chunks)
	if err := a.index.Add(ctx, chunks); err != nil {
		return "", fmt.Errorf("index %s: %w", path, err)
	}

	session := a.sessions.Get(sessionID)
	name := filepath.Base(path)
	fileID := session.RegisterFile(name, path)
	log.Printf("[app] ingested %s as %d chunks (file %s)", path, len(chunks), fileID)
	return name, nil
}

// ProcessTurn runs one user message through the full pipeline and always
// produces a response: provider failure degrades to an apology that is
// still recorded, so the conversation log never has a user turn without a
// following assistant turn.
func (a *App) ProcessTurn(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	session := a.sessions.Get(sessionID)

	session.Memory.AddMessage(chat.RoleUser, text)
	if err := a.history.AddTurn(memory.PersistedTurn{ChatID: session.ID, Role: "user", Content: text}); err != nil {
		log.Printf("[app] persist user turn: %v", err)
	}

	// Retrieval only engages once documents exist; the enhanced query is
	// used for search while the user's words go to the model untouched.
	var evidence []string
	if a.store.Len() > 0 {
		searchQuery := enhance.RewriteOrOriginal(ctx, a.provider, text, enhance.ModeExpansion)
		evidence = a.retriever.RelevantDocuments(ctx, searchQuery)
	}

	c := chat.NewContext(a.buildSystemPrompt(evidence))
	c.MaxTokens = a.cfg.Provider.MaxTokens
	c.Temperature = a.cfg.Provider.Temperature
	c.Messages = session.Memory.GetContextForQuery(text)
	chat.Truncate(c, a.cfg.Memory.ContextBudget)
	// The memory context already carries the current user message via
	// short-term memory; guard against it having been truncated away.
	if last := c.LastMessage(); last.Content != text || last.Role != chat.RoleUser {
		c.AddMessage(chat.RoleUser, text)
	}

	response, err := a.provider.Generate(ctx, c)
	if err != nil {
		log.Printf("[app] completion failed: %v", err)
		response = degradedReply
	}

	session.Memory.AddMessage(chat.RoleAssistant, response)
	if err := a.history.AddTurn(memory.PersistedTurn{
		ChatID:   session.ID,
		Role:     "assistant",
		Content:  response,
		Metadata: map[string]string{"model": a.provider.Name()},
	}); err != nil {
		log.Printf("[app] persist assistant turn: %v", err)
	}

	a.scheduleBackground(session, text, response)

	return &TurnResult{SessionID: session.ID, Response: response, Evidence: evidence}, nil
}

func (a *App) buildSystemPrompt(evidence []string) string {
	prompt := defaultSystemPrompt
	if block := retrieval.EvidenceBlock(evidence); block != "" {
		prompt += "\n\nRelevant document excerpts:\n" + block
	}
	return prompt
}

// scheduleBackground queues fact extraction for both sides of the turn
// and, on the summary cadence, a conversation summary. All of it is
// fire-and-forget; failures only log.
func (a *App) scheduleBackground(session *memory.Session, userText, assistantText string) {
	tasks := a.runner()
	for _, msg := range []string{userText, assistantText} {
		msg := msg
		if err := tasks.Go("extract-facts", func(ctx context.Context) {
			for topic, facts := range memory.ExtractFacts(ctx, a.provider, msg) {
				for _, fact := range facts {
					session.Memory.AddToLongTerm(topic, fact)
				}
			}
		}); err != nil {
			return
		}
	}

	count := session.BumpMessageCount()
	interval := a.cfg.Memory.SummaryInterval
	if interval <= 0 {
		interval = config.DefaultSummaryInterval
	}
	if count%interval != 0 {
		return
	}
	msgs := session.Memory.RecentMessages(a.cfg.Memory.ShortTermLimit)
	if err := tasks.Go("summarize", func(ctx context.Context) {
		summary := memory.SummarizeConversation(ctx, a.provider, msgs)
		if summary != memory.EmptySummarySentinel && summary != memory.ErrorSummarySentinel {
			session.Memory.AddSummary(summary)
		}
	}); err != nil {
		log.Printf("[app] summary task rejected: %v", err)
	}
}

// WaitBackground blocks until queued background tasks finish, then
// installs a fresh runner so later turns keep working. For tests and
// embedders that need a turn's memory writes settled before reading
// them; the normal shutdown path uses Close, which also waits. The swap
// happens under the lock, so a concurrent turn schedules onto either
// the old runner (drained here) or the new one (drained at Close).
func (a *App) WaitBackground() {
	a.tasksMu.Lock()
	old := a.tasks
	a.tasks = memory.NewTaskRunner()
	a.tasksMu.Unlock()
	old.Close()
}
