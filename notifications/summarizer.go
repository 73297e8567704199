package notifications

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"go-icewatch/monitoring"
	"go-icewatch/types"
)

const maxSummaryInput = 8000

// Summarizer produces a short digest of a cluster's member reports for
// NEW alerts. Optional: a nil Summarizer means alerts go out without one,
// and any failure degrades to no summary rather than blocking dispatch.
type Summarizer struct {
	client *openai.Client
}

// NewSummarizer returns nil when no API key is configured.
func NewSummarizer(apiKey string) *Summarizer {
	if apiKey == "" {
		return nil
	}
	return &Summarizer{client: openai.NewClient(apiKey)}
}

// Summarize combines member texts and asks for a 2-3 sentence digest.
func (s *Summarizer) Summarize(ctx context.Context, cl *types.Cluster) string {
	if s == nil {
		return ""
	}

	var texts []string
	for _, m := range cl.Members {
		if t := m.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return ""
	}
	combined := strings.Join(texts, "\n---\n")
	if len(combined) > maxSummaryInput {
		combined = combined[:maxSummaryInput]
	}

	prompt := fmt.Sprintf("Summarize the following community reports of immigration enforcement activity near %s. State what is being reported, where, and how consistent the reports are. Disregard any report that does not fit. 2-3 sentences maximum:\n\n---\n%s\n---\n\nSummary:", cl.Label, combined)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: openai.GPT4oMini,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an assistant that summarizes community safety reports concisely and without speculation.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   150,
		Temperature: 0.3,
	})
	if err != nil {
		monitoring.Warnf("summarizer: skipping summary for cluster %s: %v", cl.ID, err)
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}
