package synthesize

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// promptTokenBudget bounds the total source material packed into a prompt.
const promptTokenBudget = 6000

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func tokenEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		// cl100k_base covers the GPT-4 family; a failure here just
		// switches truncation to rune counting.
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// truncateToTokens trims text to at most budget tokens, falling back to an
// approximate rune cap when no encoding is available.
func truncateToTokens(text string, budget int) string {
	enc := tokenEncoding()
	if enc == nil {
		// Roughly four runes per token for English prose.
		return utils.TruncateRunes(text, budget*4)
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return enc.Decode(tokens[:budget])
}

// buildSourceBlocks renders documents as numbered blocks sharing the token
// budget evenly.
func buildSourceBlocks(docs []models.SourceDocument) string {
	perSource := promptTokenBudget / len(docs)

	var b strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, doc.Title, doc.URL, truncateToTokens(doc.Text, perSource))
	}
	return b.String()
}
