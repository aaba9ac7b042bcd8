package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/chatssi/server/internal/auth"
	"github.com/chatssi/server/internal/core"
	"github.com/chatssi/server/internal/store"
)

type ctxKey int

const userCtxKey ctxKey = iota

type APIHandler struct {
	db          *store.BigtableStore
	chatService *core.ChatService
	oauthConf   *oauth2.Config
}

func NewAPIHandler(db *store.BigtableStore, cs *core.ChatService) *APIHandler {
	return &APIHandler{
		db:          db,
		chatService: cs,
		oauthConf:   auth.NewGoogleOAuth(),
	}
}

func currentUser(r *http.Request) *store.User {
	u, _ := r.Context().Value(userCtxKey).(*store.User)
	return u
}

// JWTAuthMiddleware accepts the session token from the Authorization
// header or the access_token cookie, resolves it to a stored user, and
// attaches the user to the request context.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tokenString string
		if header := r.Header.Get("Authorization"); header != "" {
			tokenString = strings.TrimPrefix(header, "Bearer ")
		} else if cookie, err := r.Cookie("access_token"); err == nil {
			tokenString = cookie.Value
		}
		if tokenString == "" {
			http.Error(w, "Could not validate credentials", http.StatusUnauthorized)
			return
		}

		userID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.db.GetUserByID(r.Context(), userID)
		if err != nil {
			log.Printf("Error resolving user %d: %v", userID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "Could not validate credentials", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginHandler starts the Google OAuth flow.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   int((5 * time.Minute).Seconds()),
		HttpOnly: true,
	})
	http.Redirect(w, r, h.oauthConf.AuthCodeURL(state), http.StatusFound)
}

// OAuthCallbackHandler finishes the flow: verifies state, exchanges the
// code for the user's profile, provisions the user, and issues the session
// cookie.
func (h *APIHandler) OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	profile, err := auth.FetchProfile(r.Context(), h.oauthConf, code)
	if err != nil {
		log.Printf("OAuth exchange failed: %v", err)
		http.Error(w, "Authentication failed", http.StatusBadRequest)
		return
	}

	user, err := auth.GetOrCreateUser(r.Context(), h.db, profile)
	if err != nil {
		var validation *store.ValidationError
		if errors.As(err, &validation) {
			http.Error(w, validation.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Failed to provision user for subject %s: %v", profile.SubjectID, err)
		http.Error(w, "Authentication failed", http.StatusInternalServerError)
		return
	}

	token, err := auth.GenerateJWT(user.ID)
	if err != nil {
		log.Printf("Error generating JWT for user %d: %v", user.ID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	json.NewEncoder(w).Encode(map[string]string{"message": "Logged out"})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(currentUser(r))
}

type chatSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	chats, err := h.chatService.ListChats(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing chats for user %d: %v", user.ID, err)
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}

	summaries := make([]chatSummary, 0, len(chats))
	for _, c := range chats {
		summaries = append(summaries, chatSummary{ID: c.ID, Title: c.Title})
	}
	json.NewEncoder(w).Encode(summaries)
}

type chatDetailsResponse struct {
	Chat     *store.Chat         `json:"chat"`
	Messages []store.ChatMessage `json:"messages"`
}

func (h *APIHandler) GetChatDetailsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	chatID := chi.URLParam(r, "chatID")

	chat, messages, err := h.chatService.GetChatWithMessages(r.Context(), chatID, user.ID)
	if err != nil {
		log.Printf("Error getting chat %s for user %d: %v", chatID, user.ID, err)
		http.Error(w, "Failed to get chat details", http.StatusInternalServerError)
		return
	}
	if chat == nil {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}
	if messages == nil {
		messages = []store.ChatMessage{}
	}
	json.NewEncoder(w).Encode(chatDetailsResponse{Chat: chat, Messages: messages})
}

type postMessageRequest struct {
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
}

// PostMessageHandler sends a message to a chat, creating the chat when it
// does not exist yet, and streams the assistant reply back as NDJSON
// events: chat_created (for a new chat), content chunks, then done.
func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	chatID := chi.URLParam(r, "chatID")

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")

	enc := json.NewEncoder(w)
	streaming := false
	writeEvent := func(event map[string]any) error {
		streaming = true
		if err := enc.Encode(event); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	events := core.SendEvents{
		ChatCreated: func(id string) error {
			return writeEvent(map[string]any{"type": "chat_created", "chat_id": id})
		},
		Content: func(text string) error {
			return writeEvent(map[string]any{"type": "content", "content": text})
		},
	}

	err := h.chatService.SendMessage(r.Context(), chatID, user.ID, req.Message, req.Title, events)
	if err != nil {
		// Once the first event is out the status line is gone; all that
		// is left is logging and cutting the stream short.
		var validation *store.ValidationError
		switch {
		case errors.As(err, &validation) && !streaming:
			http.Error(w, validation.Error(), http.StatusBadRequest)
		case errors.Is(err, core.ErrChatForbidden) && !streaming:
			http.Error(w, "Access denied", http.StatusForbidden)
		default:
			log.Printf("Error streaming message for user %d, chat %s: %v", user.ID, chatID, err)
			if !streaming {
				http.Error(w, "Failed to post message", http.StatusInternalServerError)
			}
		}
		return
	}

	if err := writeEvent(map[string]any{"type": "done"}); err != nil {
		log.Printf("Failed to write final stream event for chat %s: %v", chatID, err)
	}
}
