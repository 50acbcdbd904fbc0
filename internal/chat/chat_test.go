package chat

import (
	"strings"
	"testing"
)

func TestFormattedMessagesPrependsSystemPrompt(t *testing.T) {
	ctx := NewContext("be helpful")
	ctx.AddMessage(RoleUser, "hi")
	ctx.AddMessage(RoleAssistant, "hello")

	got := ctx.FormattedMessages()
	if len(got) != 3 {
		t.Fatalf("message count = %d, want 3", len(got))
	}
	if got[0].Role != RoleSystem || got[0].Content != "be helpful" {
		t.Errorf("first message = %+v, want system prompt", got[0])
	}
	if got[1].Content != "hi" || got[2].Content != "hello" {
		t.Errorf("conversation order wrong: %+v", got[1:])
	}
}

func TestFormattedMessagesWithoutSystemPrompt(t *testing.T) {
	ctx := NewContext("")
	ctx.AddMessage(RoleUser, "hi")
	if got := ctx.FormattedMessages(); len(got) != 1 || got[0].Role != RoleUser {
		t.Fatalf("got %+v, want only the user message", got)
	}
}

func TestLastMessage(t *testing.T) {
	ctx := NewContext("sp")
	if got := ctx.LastMessage(); got.Content != "" {
		t.Fatalf("empty context LastMessage = %+v, want zero", got)
	}
	ctx.AddMessage(RoleUser, "a")
	ctx.AddMessage(RoleAssistant, "b")
	if got := ctx.LastMessage(); got.Content != "b" {
		t.Fatalf("LastMessage content = %q, want %q", got.Content, "b")
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcdefg", 1},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%d bytes) = %d, want %d", len(tc.text), got, tc.want)
		}
	}
}

func TestTruncateKeepsChronologicalSuffix(t *testing.T) {
	ctx := NewContext("")
	for _, s := range []string{"oldest", "middle", "newest"} {
		ctx.AddMessage(RoleUser, strings.Repeat(s+" ", 40))
	}
	// Budget only fits the two most recent messages.
	budget := EstimateTokens(ctx.Messages[1].Content) + EstimateTokens(ctx.Messages[2].Content)
	Truncate(ctx, budget)

	if len(ctx.Messages) != 2 {
		t.Fatalf("kept %d messages, want 2", len(ctx.Messages))
	}
	if !strings.HasPrefix(ctx.Messages[0].Content, "middle") ||
		!strings.HasPrefix(ctx.Messages[1].Content, "newest") {
		t.Errorf("kept wrong suffix: %q, %q", ctx.Messages[0].Content, ctx.Messages[1].Content)
	}
}

func TestTruncateCostIsContentOnly(t *testing.T) {
	// A message whose content exactly fills the budget survives; the
	// role marker contributes nothing to the estimate.
	ctx := NewContext("")
	ctx.AddMessage(RoleUser, strings.Repeat("x", 40)) // 10 tokens
	Truncate(ctx, 10)
	if len(ctx.Messages) != 1 {
		t.Fatalf("kept %d messages, want 1 at an exact budget fit", len(ctx.Messages))
	}
}

func TestTruncateBudgetCoversAll(t *testing.T) {
	ctx := NewContext("short prompt")
	ctx.AddMessage(RoleUser, "a")
	ctx.AddMessage(RoleAssistant, "b")
	Truncate(ctx, 0) // default budget
	if len(ctx.Messages) != 2 {
		t.Fatalf("kept %d messages, want all 2", len(ctx.Messages))
	}
}

func TestTruncateOversizedSystemPrompt(t *testing.T) {
	ctx := NewContext(strings.Repeat("p", 4096))
	ctx.AddMessage(RoleUser, "question")
	Truncate(ctx, 100)
	if len(ctx.Messages) != 0 {
		t.Fatalf("kept %d messages, want 0 when the prompt exhausts the budget", len(ctx.Messages))
	}
	if ctx.SystemPrompt == "" {
		t.Fatal("system prompt was dropped")
	}
}

func TestTruncateRespectsBudget(t *testing.T) {
	ctx := NewContext("sys")
	for i := 0; i < 50; i++ {
		ctx.AddMessage(RoleUser, strings.Repeat("w", 100))
	}
	Truncate(ctx, 500)
	total := EstimateTokens(ctx.SystemPrompt)
	for _, m := range ctx.Messages {
		total += EstimateTokens(m.Content)
	}
	if total > 500 {
		t.Fatalf("estimated tokens after truncation = %d, want <= 500", total)
	}
	if len(ctx.Messages) == 0 {
		t.Fatal("expected some messages to fit the budget")
	}
}
