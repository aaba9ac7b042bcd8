package store

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"

	"cloud.google.com/go/bigtable"
)

// CreateChat writes a new chat row. If chatID is empty an id is allocated;
// callers may supply their own so the message-send flow can pre-assign a
// chat id before anything is persisted.
func (s *BigtableStore) CreateChat(ctx context.Context, title string, userID int64, chatID string) (*Chat, error) {
	if chatID == "" {
		chatID = strconv.FormatInt(s.ids.next(), 10)
	}
	now := s.now().UTC()
	nowCell := []byte(encodeTime(now))

	mut := bigtable.NewMutation()
	ts := bigtable.Now()
	mut.Set(chatDataFamily, "title", ts, []byte(title))
	mut.Set(chatDataFamily, "user_id", ts, []byte(strconv.FormatInt(userID, 10)))
	mut.Set(metadataFamily, "created_at", ts, nowCell)
	mut.Set(metadataFamily, "updated_at", ts, nowCell)

	if err := s.table.Apply(ctx, chatKey(chatID), mut); err != nil {
		return nil, fmt.Errorf("failed to write chat row: %w", err)
	}

	updated := now
	return &Chat{
		ID:        chatID,
		Title:     title,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: &updated,
	}, nil
}

// GetChatByID returns the chat, or nil if no such row exists.
func (s *BigtableStore) GetChatByID(ctx context.Context, chatID string) (*Chat, error) {
	key := chatKey(chatID)
	row, err := s.table.ReadRow(ctx, key, bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, fmt.Errorf("failed to read chat row: %w", err)
	}
	if len(row) == 0 {
		return nil, nil
	}
	return decodeChat(key, row)
}

// GetChatsByUserID returns all chats owned by userID, newest first. This
// scans the whole chat key range and filters on the owner column
// client-side; see the package comment for why that is acceptable.
func (s *BigtableStore) GetChatsByUserID(ctx context.Context, userID int64) ([]Chat, error) {
	owner := strconv.FormatInt(userID, 10)
	var (
		chats     []Chat
		decodeErr error
	)
	err := s.table.ReadRows(ctx, bigtable.PrefixRange(kindPrefix(kindChat)), func(r bigtable.Row) bool {
		if flattenRow(r)["user_id"] != owner {
			return true
		}
		chat, err := decodeChat(r.Key(), r)
		if err != nil {
			decodeErr = err
			return false
		}
		chats = append(chats, *chat)
		return true
	}, bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, fmt.Errorf("failed to scan chat rows: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	return chats, nil
}

// UpdateChat rewrites the title if supplied and always refreshes
// updated_at, which is how a message append "touches" its parent. Returns
// nil if the chat does not exist; nothing is written in that case.
func (s *BigtableStore) UpdateChat(ctx context.Context, chatID string, title *string) (*Chat, error) {
	existing, err := s.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	mut := bigtable.NewMutation()
	ts := bigtable.Now()
	if title != nil {
		mut.Set(chatDataFamily, "title", ts, []byte(*title))
	}
	mut.Set(metadataFamily, "updated_at", ts, []byte(encodeTime(s.now().UTC())))

	if err := s.table.Apply(ctx, chatKey(chatID), mut); err != nil {
		return nil, fmt.Errorf("failed to update chat row: %w", err)
	}
	return s.GetChatByID(ctx, chatID)
}

// CreateMessage writes a new message row, then touches the parent chat's
// updated_at. Those are two independent single-row commits with no
// atomicity between them: a crash in the gap leaves the message persisted
// and the chat timestamp stale. That eventual-consistency gap is accepted:
// the touch is a cache of "latest activity", not a source of truth.
func (s *BigtableStore) CreateMessage(ctx context.Context, chatID string, userID int64, messageType, content string, tokensUsed *int, model *string) (*ChatMessage, error) {
	id := s.ids.next()
	now := s.now().UTC()

	mut := bigtable.NewMutation()
	ts := bigtable.Now()
	mut.Set(messageDataFamily, "chat_id", ts, []byte(chatID))
	mut.Set(messageDataFamily, "user_id", ts, []byte(strconv.FormatInt(userID, 10)))
	mut.Set(messageDataFamily, "message_type", ts, []byte(messageType))
	mut.Set(messageDataFamily, "content", ts, []byte(content))
	if tokensUsed != nil {
		mut.Set(messageDataFamily, "tokens_used", ts, []byte(strconv.Itoa(*tokensUsed)))
	}
	if model != nil {
		mut.Set(messageDataFamily, "model", ts, []byte(*model))
	}
	mut.Set(metadataFamily, "created_at", ts, []byte(encodeTime(now)))

	if err := s.table.Apply(ctx, messageKey(id), mut); err != nil {
		return nil, fmt.Errorf("failed to write message row: %w", err)
	}

	// The message itself is already durable; a failed touch only leaves
	// the parent's updated_at behind, so log and carry on.
	if _, err := s.UpdateChat(ctx, chatID, nil); err != nil {
		log.Printf("Failed to touch chat %s after message %d: %v", chatID, id, err)
	}

	return &ChatMessage{
		ID:          id,
		ChatID:      chatID,
		UserID:      userID,
		MessageType: messageType,
		Content:     content,
		TokensUsed:  tokensUsed,
		Model:       model,
		CreatedAt:   now,
	}, nil
}

// GetMessagesByChatID returns a chat's messages in chronological order,
// scanning the message key range and filtering on chat_id client-side.
// Ties on created_at break on id, which derives from the same clock.
func (s *BigtableStore) GetMessagesByChatID(ctx context.Context, chatID string) ([]ChatMessage, error) {
	var (
		messages  []ChatMessage
		decodeErr error
	)
	err := s.table.ReadRows(ctx, bigtable.PrefixRange(kindPrefix(kindMessage)), func(r bigtable.Row) bool {
		if flattenRow(r)["chat_id"] != chatID {
			return true
		}
		msg, err := decodeMessage(r.Key(), r)
		if err != nil {
			decodeErr = err
			return false
		}
		messages = append(messages, *msg)
		return true
	}, bigtable.RowFilter(bigtable.LatestNFilter(1)))
	if err != nil {
		return nil, fmt.Errorf("failed to scan message rows: %w", err)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}
