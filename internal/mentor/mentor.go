// Package mentor answers the player's security questions during an
// investigation. With an OpenAI API key it streams model completions; without
// one it falls back to canned rule-based advice so the feature works offline.
package mentor

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/models"
	openai "github.com/sashabaranov/go-openai"
)

const maxTokens = 1024

const systemPrompt = `You are a friendly cybersecurity mentor inside a detective game.
The player investigates a fictional security incident. Help them reason about
the evidence without revealing which answer options are correct. Keep replies
short and concrete. Answer in the language the player uses.`

// Advisor streams a mentor reply chunk by chunk. The returned channel closes
// when the reply is complete or the context is cancelled.
type Advisor interface {
	Advise(ctx context.Context, caseRecord *models.Case, question string) (<-chan string, error)
}

// Client is the OpenAI-backed advisor.
type Client struct {
	client *openai.Client
	logger *slog.Logger
}

func NewClient(apiKey string, logger *slog.Logger) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		logger: logger.With("source", "mentor.Client"),
	}
}

// Advise streams a completion for the player's question, grounded in the
// case briefing.
func (c *Client) Advise(ctx context.Context, caseRecord *models.Case, question string) (<-chan string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleSystem, Content: "Case briefing: " + caseRecord.BriefingEN},
		{Role: openai.ChatMessageRoleUser, Content: question},
	}
	stream, err := c.client.CreateChatCompletionStream(
		ctx,
		openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
			Model:     openai.GPT3Dot5Turbo1106,
			MaxTokens: maxTokens,
			Messages:  messages,
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create chat completion stream")
	}

	chunks := make(chan string)
	go func() {
		defer close(chunks)
		defer func() {
			if err := stream.Close(); err != nil {
				c.logger.LogAttrs(ctx, slog.LevelError, "close completion stream",
					slog.Any("error", err))
			}
		}()
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				c.logger.LogAttrs(ctx, slog.LevelError, "receive completion chunk",
					slog.Any("error", err))
				return
			}
			if len(response.Choices) == 0 {
				continue
			}
			select {
			case chunks <- response.Choices[0].Delta.Content:
			case <-ctx.Done():
				return
			}
		}
	}()
	return chunks, nil
}

// RuleBased is the offline advisor. It matches the question against a small
// set of topics and streams a canned hint, so local development and tests
// never need an API key.
type RuleBased struct{}

func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

type rule struct {
	keywords []string
	advice   string
}

var rules = []rule{
	{
		keywords: []string{"domain", "sender", "address", "verkkotunnus", "lähettäjä"},
		advice: "Compare the sender's domain letter by letter with the organisation's real domain. " +
			"Attackers register lookalike domains, often just days before the campaign.",
	},
	{
		keywords: []string{"bank", "account", "payment", "transfer", "pankki", "tili", "maksu"},
		advice: "Any request to change bank details should be verified through a second channel, " +
			"for example by calling the person on a known number.",
	},
	{
		keywords: []string{"password", "link", "login", "salasana", "linkki"},
		advice: "Never enter credentials through a link in an unexpected message. " +
			"Open the service from a bookmark or by typing the address yourself.",
	},
	{
		keywords: []string{"evidence", "todiste", "clue", "vihje"},
		advice: "Read each piece of evidence with one question in mind: does this detail match " +
			"what a legitimate sender would do?",
	},
}

const defaultAdvice = "Look for details that do not add up: who sent the message, when, and what " +
	"they are asking you to do. Urgency and secrecy are the attacker's favourite tools."

// Advise streams the first matching canned hint word by word.
func (r *RuleBased) Advise(ctx context.Context, _ *models.Case, question string) (<-chan string, error) {
	advice := defaultAdvice
	lowered := strings.ToLower(question)
	for _, rule := range rules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				advice = rule.advice
				break
			}
		}
		if advice != defaultAdvice {
			break
		}
	}

	chunks := make(chan string)
	go func() {
		defer close(chunks)
		for _, word := range strings.SplitAfter(advice, " ") {
			select {
			case chunks <- word:
			case <-ctx.Done():
				return
			}
		}
	}()
	return chunks, nil
}
