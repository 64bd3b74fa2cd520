package api

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/pkg/router"
	"github.com/putto11262002/chatter-client/store"
)

type conversationKey struct{}

// conversationMiddleware rejects requests whose conversationID URL parameter
// does not name a known conversation.
func (a *Api) conversationMiddleware(next http.Handler) router.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		id := chi.URLParam(r, "conversationID")
		if _, ok := a.provider.State().Conversations[id]; !ok {
			return fmt.Errorf("conversation %q: %w", id, core.ErrInvalidConversation)
		}
		ctx := context.WithValue(r.Context(), conversationKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
		return nil
	}
}

func conversationFromRequest(r *http.Request) string {
	id, _ := r.Context().Value(conversationKey{}).(string)
	return id
}

func (a *Api) GetStateHandler(w http.ResponseWriter, r *http.Request) error {
	if r.URL.Query().Get("full") != "" {
		return WriteJsonResponse(w, a.provider.State())
	}
	return WriteJsonResponse(w, NewStateSummary(a.provider.State()))
}

func (a *Api) GetUsersHandler(w http.ResponseWriter, r *http.Request) error {
	s := a.provider.State()
	users := make([]core.User, 0, len(s.Users))
	for _, u := range s.Users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(x, y core.User) int {
		return cmp.Compare(x.ID, y.ID)
	})
	return WriteJsonResponse(w, users)
}

func (a *Api) GetUserHandler(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "userID")
	user, ok := store.UserByID(a.provider.State(), id)
	if !ok {
		return fmt.Errorf("user %q: %w", id, core.ErrInvalidUser)
	}
	return WriteJsonResponse(w, user)
}

func (a *Api) GetConversationsHandler(w http.ResponseWriter, r *http.Request) error {
	return WriteJsonResponse(w, NewConversationsResponse(a.provider.State()))
}

func (a *Api) LoadConversationsHandler(w http.ResponseWriter, r *http.Request) error {
	if err := a.provider.LoadConversations(r.Context()); err != nil {
		return err
	}
	return WriteJsonResponse(w, NewConversationsResponse(a.provider.State()))
}

func (a *Api) SelectConversationHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SelectConversationRequest
	if err := a.DecodeJson(r.Body, &payload); err != nil {
		return err
	}
	if err := a.provider.SelectConversation(r.Context(), payload.ID); err != nil {
		return err
	}
	if payload.ID == "" {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	return WriteJsonResponse(w, NewMessagesResponse(a.provider.State(), payload.ID))
}

func (a *Api) GetMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	return WriteJsonResponse(w, NewMessagesResponse(a.provider.State(), conversationFromRequest(r)))
}

func (a *Api) LoadOlderMessagesHandler(w http.ResponseWriter, r *http.Request) error {
	id := conversationFromRequest(r)
	if err := a.provider.LoadOlderMessages(r.Context(), id); err != nil {
		return err
	}
	return WriteJsonResponse(w, NewMessagesResponse(a.provider.State(), id))
}

func (a *Api) TypingHandler(w http.ResponseWriter, r *http.Request) error {
	var payload TypingRequest
	if err := a.DecodeJson(r.Body, &payload); err != nil {
		return err
	}
	id := conversationFromRequest(r)
	if *payload.Typing {
		a.provider.SendTyping(id)
	} else {
		a.provider.StopTyping(id)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// SendMessageHandler sends a message to the active conversation. A failed send
// still leaves the message in the conversation with the failed status.
func (a *Api) SendMessageHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SendMessageRequest
	if err := a.DecodeJson(r.Body, &payload); err != nil {
		return err
	}
	s := a.provider.State()
	if s.CurrentUser == nil {
		return router.NewJsonError(http.StatusConflict, "session is not started")
	}
	if _, ok := store.ActiveConversation(s); !ok {
		return router.NewJsonError(http.StatusConflict, "no active conversation")
	}
	m, err := a.provider.SendMessage(r.Context(), payload.Content)
	if err != nil {
		return err
	}
	if m.ID == "" {
		return router.NewJsonError(http.StatusConflict, "no active conversation")
	}
	return WriteJsonResponseWithStatusCode(w, NewMessagesResponse(a.provider.State(), m.ConversationID), http.StatusCreated)
}

func (a *Api) RetryMessageHandler(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "messageID")
	m, ok := a.provider.State().Messages[id]
	if !ok {
		return router.NewJsonError(http.StatusNotFound, fmt.Sprintf("message %q not found", id))
	}
	if m.Status != core.MessageFailed {
		return router.NewJsonError(http.StatusConflict, fmt.Sprintf("message %q is %s", id, m.Status))
	}
	if err := a.provider.RetryMessage(r.Context(), id); err != nil {
		return err
	}
	return WriteJsonResponse(w, NewMessagesResponse(a.provider.State(), m.ConversationID))
}

func (a *Api) SearchHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SearchRequest
	if err := a.DecodeJson(r.Body, &payload); err != nil {
		return err
	}
	a.provider.SetSearchQuery(payload.Query)
	return WriteJsonResponse(w, NewConversationsResponse(a.provider.State()))
}
