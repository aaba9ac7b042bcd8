package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/chatssi/server/internal/config"
	"github.com/chatssi/server/internal/store"
)

const defaultChatModelName = "gemini-1.5-flash-latest"

// Turn is one prior exchange in a conversation, in domain terms (roles are
// store.MessageTypeUser / store.MessageTypeAssistant).
type Turn struct {
	Role    string
	Content string
}

// CompletionResult is the assembled outcome of a streamed completion.
type CompletionResult struct {
	Text       string
	Model      string
	TokensUsed *int
}

// CompletionStreamer generates an assistant reply for a conversation,
// invoking onText for each chunk as it arrives. If onText returns an error
// (typically because the client went away) the streamer stops consuming
// upstream tokens and returns that error.
type CompletionStreamer interface {
	StreamCompletion(ctx context.Context, turns []Turn, onText func(string) error) (*CompletionResult, error)
}

type LLMService struct {
	client *genai.Client
	model  string
}

func NewLLMService() *LLMService {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &LLMService{
		client: client,
		model:  defaultChatModelName,
	}
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (s *LLMService) StreamCompletion(ctx context.Context, turns []Turn, onText func(string) error) (*CompletionResult, error) {
	if len(turns) == 0 {
		return nil, fmt.Errorf("conversation is empty, nothing to complete")
	}
	last := turns[len(turns)-1]
	if last.Role != store.MessageTypeUser {
		return nil, fmt.Errorf("last turn in conversation is not from the user")
	}

	model := s.client.GenerativeModel(s.model)
	chatSession := model.StartChat()
	for _, t := range turns[:len(turns)-1] {
		role := "user"
		if t.Role == store.MessageTypeAssistant {
			role = "model"
		}
		chatSession.History = append(chatSession.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}

	iter := chatSession.SendMessageStream(ctx, genai.Text(last.Content))

	var text strings.Builder
	var usage *genai.UsageMetadata
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("gemini streaming request failed: %w", err)
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			txt, ok := part.(genai.Text)
			if !ok || txt == "" {
				continue
			}
			text.WriteString(string(txt))
			if onText != nil {
				if err := onText(string(txt)); err != nil {
					return nil, err
				}
			}
		}
	}

	result := &CompletionResult{Text: text.String(), Model: s.model}
	if usage != nil {
		n := int(usage.TotalTokenCount)
		result.TokensUsed = &n
	}
	return result, nil
}
