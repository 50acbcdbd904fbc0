package chat

// DefaultTruncateBudget is the token budget applied when a caller passes a
// non-positive budget to Truncate.
const DefaultTruncateBudget = 4000

// EstimateTokens approximates the token count of text as len/4. The
// divisor matches typical byte-per-token ratios for English prose; it is an
// estimate, not a tokenizer.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Truncate drops the oldest messages until the context fits within budget
// estimated tokens. The system prompt always survives and its cost counts
// against the budget first. The retained messages are a suffix of the
// original list in chronological order.
//
// A system prompt whose cost alone exceeds the budget leaves the context
// with the prompt and no messages; the prompt carries instructions the
// conversation cannot function without, so it is never the part dropped.
func Truncate(c *Context, budget int) {
	if budget <= 0 {
		budget = DefaultTruncateBudget
	}
	total := EstimateTokens(c.SystemPrompt)
	kept := make([]Message, 0, len(c.Messages))
	for i := len(c.Messages) - 1; i >= 0; i-- {
		cost := EstimateTokens(c.Messages[i].Content)
		if total+cost > budget {
			break
		}
		total += cost
		kept = append(kept, c.Messages[i])
	}
	// kept was built newest first; restore chronological order.
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}
	c.Messages = kept
}
