package memory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/solenoidlabs/recall/internal/chat"
	"github.com/solenoidlabs/recall/internal/jsonrepair"
	"github.com/solenoidlabs/recall/internal/provider"
)

const extractFactsPrompt = `Extract key facts about the user from the message below. Respond with a JSON object mapping a short topic name to a list of fact strings, for example {"location": ["lives in Lisbon"], "pets": ["has a dog named Rex"]}. Respond with {} if the message contains no durable facts. Respond with JSON only.`

const summarizePrompt = `Summarize the conversation below in at most 200 words. Capture the topics discussed, decisions made, and any facts the user shared. Write the summary directly, with no preamble.`

// EmptySummarySentinel is returned when there is nothing to summarize.
const EmptySummarySentinel = "No conversation to summarize yet."

// ErrorSummarySentinel is stored when summary generation fails; the
// failure is logged but never surfaces to the turn path.
const ErrorSummarySentinel = "Error generating summary."

// ExtractFacts pulls topic-keyed facts out of one message. Model failures
// and unparseable output both yield an empty map: extraction is a
// background enrichment and must never fail a turn.
func ExtractFacts(ctx context.Context, p provider.Provider, message string) map[string][]string {
	if strings.TrimSpace(message) == "" {
		return map[string][]string{}
	}

	c := chat.NewContext(extractFactsPrompt)
	c.MaxTokens = 512
	c.Temperature = 0.1
	c.AddMessage(chat.RoleUser, message)

	out, err := p.Generate(ctx, c)
	if err != nil {
		log.Printf("[memory] fact extraction failed: %v", err)
		return map[string][]string{}
	}
	facts, err := jsonrepair.DecodeStringListMap(out)
	if err != nil {
		log.Printf("[memory] fact extraction returned no usable JSON: %v", err)
		return map[string][]string{}
	}
	return facts
}

// SummarizeConversation produces a rolling summary of the messages. Empty
// input returns the empty sentinel; a provider failure returns the error
// sentinel. Neither case is an error to the caller.
func SummarizeConversation(ctx context.Context, p provider.Provider, msgs []chat.Message) string {
	if len(msgs) == 0 {
		return EmptySummarySentinel
	}

	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}

	c := chat.NewContext(summarizePrompt)
	c.MaxTokens = 512
	c.Temperature = 0.3
	c.AddMessage(chat.RoleUser, sb.String())

	out, err := p.Generate(ctx, c)
	if err != nil {
		log.Printf("[memory] summary generation failed: %v", err)
		return ErrorSummarySentinel
	}
	summary := strings.TrimSpace(out)
	if summary == "" {
		return ErrorSummarySentinel
	}
	return summary
}

// TaskRunner tracks fire-and-forget background work so shutdown can wait
// for it. Tasks receive a context cancelled by Close.
type TaskRunner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewTaskRunner() *TaskRunner {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskRunner{ctx: ctx, cancel: cancel}
}

// Go runs fn on a new goroutine. Panics are recovered and logged: a
// broken background task must not take the process down. After Close, Go
// is a no-op returning an error.
func (r *TaskRunner) Go(name string, fn func(ctx context.Context)) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("task runner closed")
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[tasks] %s panicked: %v", name, rec)
			}
		}()
		fn(r.ctx)
	}()
	return nil
}

// Close cancels the shared context and waits for in-flight tasks.
func (r *TaskRunner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}
