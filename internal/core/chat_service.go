package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chatssi/server/internal/store"
)

// ErrChatForbidden is returned when a caller addresses a chat owned by
// someone else.
var ErrChatForbidden = errors.New("chat belongs to another user")

const titleSeedLimit = 50

type ChatService struct {
	db  *store.BigtableStore
	llm CompletionStreamer
}

func NewChatService(db *store.BigtableStore, llm CompletionStreamer) *ChatService {
	return &ChatService{db: db, llm: llm}
}

func (s *ChatService) ListChats(ctx context.Context, userID int64) ([]store.Chat, error) {
	return s.db.GetChatsByUserID(ctx, userID)
}

// GetChatWithMessages loads a chat and its messages. Returns a nil chat
// when it does not exist or is not visible to the caller.
func (s *ChatService) GetChatWithMessages(ctx context.Context, chatID string, userID int64) (*store.Chat, []store.ChatMessage, error) {
	chat, err := s.db.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if chat == nil || chat.UserID != userID {
		return nil, nil, nil
	}

	messages, err := s.db.GetMessagesByChatID(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return chat, messages, nil
}

// SendEvents receives the streamed results of SendMessage as they happen.
// A callback returning an error aborts upstream generation; rows already
// written stay written.
type SendEvents struct {
	ChatCreated func(chatID string) error
	Content     func(text string) error
}

// SendMessage drives the message-send flow: ensure the chat exists,
// creating it with a title seeded from the message if not, persist the
// user's message, stream the assistant reply, and persist the reply once
// generation completes. The user message and assistant message are
// independent row writes; if generation fails midway the user's message
// stays persisted and is not rolled back.
func (s *ChatService) SendMessage(ctx context.Context, chatID string, userID int64, content, title string, events SendEvents) error {
	if strings.TrimSpace(content) == "" {
		return &store.ValidationError{Field: "message"}
	}

	chat, err := s.db.GetChatByID(ctx, chatID)
	if err != nil {
		return err
	}

	var turns []Turn
	if chat != nil {
		if chat.UserID != userID {
			return ErrChatForbidden
		}
		history, err := s.db.GetMessagesByChatID(ctx, chatID)
		if err != nil {
			return err
		}
		for _, m := range history {
			turns = append(turns, Turn{Role: m.MessageType, Content: m.Content})
		}
	} else {
		if title == "" {
			title = seedTitle(content)
		}
		chat, err = s.db.CreateChat(ctx, title, userID, chatID)
		if err != nil {
			return err
		}
		if events.ChatCreated != nil {
			if err := events.ChatCreated(chat.ID); err != nil {
				return err
			}
		}
	}
	turns = append(turns, Turn{Role: store.MessageTypeUser, Content: content})

	if _, err := s.db.CreateMessage(ctx, chat.ID, userID, store.MessageTypeUser, content, nil, nil); err != nil {
		return fmt.Errorf("failed to store user message: %w", err)
	}

	result, err := s.llm.StreamCompletion(ctx, turns, events.Content)
	if err != nil {
		return fmt.Errorf("completion stream failed: %w", err)
	}

	if _, err := s.db.CreateMessage(ctx, chat.ID, userID, store.MessageTypeAssistant, result.Text, result.TokensUsed, &result.Model); err != nil {
		return fmt.Errorf("failed to store assistant message: %w", err)
	}
	return nil
}

// seedTitle derives a chat title from its first message, truncated at 50
// characters with an ellipsis.
func seedTitle(content string) string {
	runes := []rune(content)
	if len(runes) > titleSeedLimit {
		return string(runes[:titleSeedLimit]) + "..."
	}
	return content
}
