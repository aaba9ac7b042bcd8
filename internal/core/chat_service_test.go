package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/bigtable/bttest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/chatssi/server/internal/store"
)

type fakeStreamer struct {
	turns  []Turn
	chunks []string
	tokens int
	err    error
}

func (f *fakeStreamer) StreamCompletion(ctx context.Context, turns []Turn, onText func(string) error) (*CompletionResult, error) {
	f.turns = append([]Turn(nil), turns...)
	if f.err != nil {
		return nil, f.err
	}

	var text strings.Builder
	for _, chunk := range f.chunks {
		text.WriteString(chunk)
		if onText != nil {
			if err := onText(chunk); err != nil {
				return nil, err
			}
		}
	}
	tokens := f.tokens
	return &CompletionResult{Text: text.String(), Model: "fake-model", TokensUsed: &tokens}, nil
}

func newTestStore(t *testing.T) *store.BigtableStore {
	t.Helper()

	srv, err := bttest.NewServer("localhost:0")
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	s, err := store.NewBigtableStore(ctx, "test-project", "test-instance", "users",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	s.EnsureSchema(ctx)
	return s
}

func TestSendMessageCreatesChatAndPersistsBothSides(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	llm := &fakeStreamer{chunks: []string{"Hel", "lo!"}, tokens: 12}
	svc := NewChatService(db, llm)

	var createdChatID string
	var streamed strings.Builder
	events := SendEvents{
		ChatCreated: func(id string) error { createdChatID = id; return nil },
		Content:     func(text string) error { streamed.WriteString(text); return nil },
	}

	err := svc.SendMessage(ctx, "chat-1", 9, "Hi there", "", events)
	require.NoError(t, err)
	require.Equal(t, "chat-1", createdChatID, "caller-supplied chat id is honored")
	require.Equal(t, "Hello!", streamed.String())

	chat, err := db.GetChatByID(ctx, "chat-1")
	require.NoError(t, err)
	require.NotNil(t, chat)
	require.Equal(t, "Hi there", chat.Title, "title seeded from the first message")
	require.Equal(t, int64(9), chat.UserID)

	msgs, err := db.GetMessagesByChatID(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, store.MessageTypeUser, msgs[0].MessageType)
	require.Equal(t, "Hi there", msgs[0].Content)
	require.Equal(t, store.MessageTypeAssistant, msgs[1].MessageType)
	require.Equal(t, "Hello!", msgs[1].Content)
	require.NotNil(t, msgs[1].Model)
	require.Equal(t, "fake-model", *msgs[1].Model)
	require.NotNil(t, msgs[1].TokensUsed)
	require.Equal(t, 12, *msgs[1].TokensUsed)

	require.NotNil(t, chat.UpdatedAt)
	require.False(t, chat.UpdatedAt.Before(chat.CreatedAt))
}

func TestSendMessagePassesHistoryToStreamer(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	llm := &fakeStreamer{chunks: []string{"second reply"}}
	svc := NewChatService(db, llm)

	require.NoError(t, svc.SendMessage(ctx, "chat-2", 9, "first question", "", SendEvents{}))

	llm.chunks = []string{"third reply"}
	require.NoError(t, svc.SendMessage(ctx, "chat-2", 9, "second question", "", SendEvents{}))

	// History: first question, its reply, then the new message.
	require.Len(t, llm.turns, 3)
	require.Equal(t, Turn{Role: store.MessageTypeUser, Content: "first question"}, llm.turns[0])
	require.Equal(t, Turn{Role: store.MessageTypeAssistant, Content: "second reply"}, llm.turns[1])
	require.Equal(t, Turn{Role: store.MessageTypeUser, Content: "second question"}, llm.turns[2])
}

func TestSendMessageForbiddenForOtherOwner(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	_, err := db.CreateChat(ctx, "private", 1, "chat-3")
	require.NoError(t, err)

	svc := NewChatService(db, &fakeStreamer{})
	err = svc.SendMessage(ctx, "chat-3", 2, "let me in", "", SendEvents{})
	require.ErrorIs(t, err, ErrChatForbidden)

	msgs, err := db.GetMessagesByChatID(ctx, "chat-3")
	require.NoError(t, err)
	require.Empty(t, msgs, "nothing persisted for a forbidden caller")
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)

	svc := NewChatService(db, &fakeStreamer{})
	err := svc.SendMessage(context.Background(), "chat-4", 1, "   ", "", SendEvents{})

	var validation *store.ValidationError
	require.True(t, errors.As(err, &validation))
}

// A failed generation leaves the user's message persisted; nothing is
// rolled back.
func TestSendMessageKeepsUserMessageOnStreamFailure(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	svc := NewChatService(db, &fakeStreamer{err: errors.New("upstream hiccup")})
	err := svc.SendMessage(ctx, "chat-5", 1, "doomed question", "", SendEvents{})
	require.Error(t, err)

	msgs, err := db.GetMessagesByChatID(ctx, "chat-5")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, store.MessageTypeUser, msgs[0].MessageType)
}

func TestSendMessageHonorsExplicitTitle(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	svc := NewChatService(db, &fakeStreamer{chunks: []string{"ok"}})
	require.NoError(t, svc.SendMessage(ctx, "chat-6", 1, "Hi there", "Hello", SendEvents{}))

	chat, err := db.GetChatByID(ctx, "chat-6")
	require.NoError(t, err)
	require.Equal(t, "Hello", chat.Title)
}

func TestSeedTitle(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", seedTitle("short"))

	exactly50 := strings.Repeat("a", 50)
	require.Equal(t, exactly50, seedTitle(exactly50))

	long := strings.Repeat("b", 51)
	require.Equal(t, strings.Repeat("b", 50)+"...", seedTitle(long))
}
