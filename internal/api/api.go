// Package api exposes a chat session over HTTP so that it can be driven and
// inspected from a browser or curl.
package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	ut "github.com/go-playground/universal-translator"
	"github.com/putto11262002/chatter-client/core"
	"github.com/putto11262002/chatter-client/pkg/router"
	"github.com/putto11262002/chatter-client/provider"
)

type Api struct {
	provider *provider.Provider
	stream   *Stream
	logger   *slog.Logger
	validate *validator.Validate
	trans    ut.Translator
	origins  []string
}

type Option func(*Api)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Api) {
		a.logger = logger
	}
}

// WithValidator sets the validator of request bodies. Validation errors are
// translated with trans when it is not nil.
func WithValidator(v *validator.Validate, trans ut.Translator) Option {
	return func(a *Api) {
		a.validate = v
		a.trans = trans
	}
}

// WithAllowedOrigins sets the origins allowed by CORS. The default is ["*"].
func WithAllowedOrigins(origins ...string) Option {
	return func(a *Api) {
		a.origins = origins
	}
}

func New(p *provider.Provider, stream *Stream, opts ...Option) *Api {
	a := &Api{
		provider: p,
		stream:   stream,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		validate: validator.New(),
		origins:  []string{"*"},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the HTTP handler of the session: the JSON API under /api
// and the event stream at /ws.
func (a *Api) Handler() http.Handler {
	r := router.New(router.WithLogger(a.logger))

	r.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	if a.stream != nil {
		r.Router.Get("/ws", a.stream.ServeHTTP)
	}

	api := router.New(router.WithLogger(a.logger))
	registerErrorMappers(api)

	api.Get("/state", a.GetStateHandler)

	api.Route("/users", func(r *router.Router) {
		r.Get("/", a.GetUsersHandler)
		r.Get("/{userID}", a.GetUserHandler)
	})

	api.Route("/conversations", func(r *router.Router) {
		r.Get("/", a.GetConversationsHandler)
		r.Post("/load", a.LoadConversationsHandler)
		r.Put("/active", a.SelectConversationHandler)
		r.Group(func(r *router.Router) {
			r.Use(a.conversationMiddleware)
			r.Get("/{conversationID}/messages", a.GetMessagesHandler)
			r.Post("/{conversationID}/messages/older", a.LoadOlderMessagesHandler)
			r.Post("/{conversationID}/typing", a.TypingHandler)
		})
	})

	api.Route("/messages", func(r *router.Router) {
		r.Post("/", a.SendMessageHandler)
		r.Post("/{messageID}/retry", a.RetryMessageHandler)
	})

	api.Put("/search", a.SearchHandler)

	r.Mount("/api", api)
	return r
}

func registerErrorMappers(r *router.Router) {
	r.RegisterErrorMapper(core.ErrInvalidConversation, router.StatusMapper(http.StatusNotFound))
	r.RegisterErrorMapper(core.ErrInvalidUser, router.StatusMapper(http.StatusNotFound))
	r.RegisterErrorMapper(core.ErrInvalidMessage, router.StatusMapper(http.StatusBadRequest))
	r.RegisterErrorMapper(core.ErrInvalidCursor, router.StatusMapper(http.StatusBadRequest))
	r.RegisterErrorMapper(core.ErrNetwork, router.StatusMapper(http.StatusServiceUnavailable))
}
