// Package app assembles a chat session with its simulated backend and serves
// it over HTTP.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/putto11262002/chatter-client/internal/api"
	"github.com/putto11262002/chatter-client/pkg/mockapi"
	"github.com/putto11262002/chatter-client/pkg/transport"
	"github.com/putto11262002/chatter-client/provider"
	"github.com/putto11262002/chatter-client/store"
)

type App struct {
	config    *Config
	context   context.Context
	server    *http.Server
	logger    *slog.Logger
	backend   *mockapi.Backend
	transport *transport.Simulator
	store     *store.Store
	provider  *provider.Provider
	stream    *api.Stream

	exit chan int

	cleanupFuncs []func(context.Context)
}

func New(ctx context.Context, config *Config) *App {
	app := &App{
		exit: make(chan int),
	}
	if ctx == nil {
		ctx, _ = signal.NotifyContext(
			context.Background(),
			syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	}
	app.context = ctx

	if config == nil {
		var err error
		config, err = LoadConfig()
		if err != nil {
			failed(1, "failed to load config: %v\n", err)
		}
	}
	if err := config.Validate(); err != nil {
		failed(1, FormatValidationErrors(err))
	}
	app.config = config

	app.logger = NewLogger(config.Log.Level)

	seed := config.Transport.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	app.backend = mockapi.NewDefault(
		mockapi.WithLatency(config.Backend.MinLatency, config.Backend.MaxLatency),
		mockapi.WithFailureRate(config.Backend.FailureRate),
		mockapi.WithRand(rand.New(rand.NewSource(seed))),
		mockapi.WithLogger(app.logger.With(slog.String("component", "backend"))),
	)
	app.transport = transport.New(app.backend,
		transport.WithOptions(transport.Options{
			ConnectDelay:     config.Transport.ConnectDelay,
			MinLatency:       config.Transport.MinLatency,
			MaxLatency:       config.Transport.MaxLatency,
			PresenceInterval: config.Transport.PresenceInterval,
			IncomingInterval: config.Transport.IncomingInterval,
			ReplyProbability: config.Transport.ReplyProbability,
			TypingDuration:   config.Transport.TypingDuration,
			DeliveredDelay:   config.Transport.DeliveredDelay,
			ReadDelay:        config.Transport.ReadDelay,
		}),
		transport.WithRand(rand.New(rand.NewSource(seed+1))),
		transport.WithLogger(app.logger.With(slog.String("component", "transport"))),
	)
	app.store = store.New(store.WithLogger(app.logger.With(slog.String("component", "store"))))
	app.provider = provider.New(app.backend, app.transport, app.store,
		provider.WithOptions(provider.Options{
			TypingTimeout: config.Session.TypingTimeout,
			TypingIdle:    config.Session.TypingIdle,
			PageSize:      config.Session.PageSize,
		}),
		provider.WithLogger(app.logger.With(slog.String("component", "provider"))),
	)

	app.stream = api.NewStream(app.transport, app.store,
		api.WithStreamLogger(app.logger.With(slog.String("component", "stream"))))

	v, trans := Validator()
	handler := api.New(app.provider, app.stream,
		api.WithLogger(app.logger.With(slog.String("component", "api"))),
		api.WithValidator(v, trans),
		api.WithAllowedOrigins(config.Server.AllowedOrigins...),
	).Handler()

	app.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", app.config.Server.Hostname, app.config.Server.Port),
		Handler: handler,
		BaseContext: func(listener net.Listener) context.Context {
			return app.context
		},
	}

	return app
}

// NewLogger returns the text logger of the application. Sources are reported
// by file base name.
func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))
}

// startSession starts the session and loads the conversation list, retrying
// until both succeed or the app shuts down.
func (app *App) startSession() {
	for {
		err := app.provider.Start(app.context)
		if err == nil {
			err = app.provider.LoadConversations(app.context)
		}
		if err == nil {
			return
		}
		app.logger.Warn(fmt.Sprintf("session start failed, retrying in %s: %v", app.config.Session.StartRetry, err))
		select {
		case <-app.context.Done():
			return
		case <-time.After(app.config.Session.StartRetry):
		}
	}
}

func (app *App) Start() {
	go app.startSession()
	app.AddCleanupFunc(func(ctx context.Context) {
		app.provider.Stop()
		app.transport.Wait()
	})
	app.AddCleanupFunc(func(ctx context.Context) {
		if err := app.stream.Close(ctx); err != nil {
			app.logger.Error(fmt.Sprintf("close stream: %v", err))
		}
	})

	app.AddCleanupFunc(func(ctx context.Context) {
		app.server.Shutdown(ctx)
	})

	// listen for shutdown signal
	go func() {
		<-app.context.Done()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()

		done := make(chan struct{})
		go func() {
			// in reverse order of registration, the server stops first
			for i := len(app.cleanupFuncs) - 1; i >= 0; i-- {
				app.cleanupFuncs[i](closeCtx)
			}
			close(done)
		}()

		select {
		case <-done:
			app.logger.Info("app shutdown gracefully")
			app.exit <- 0
		case <-closeCtx.Done():
			app.logger.Info("app shutdown timed out")
			app.exit <- 1

		}

	}()

	app.logger.Info(fmt.Sprintf("app running on: %s:%d",
		app.config.Server.Hostname, app.config.Server.Port))

	err := app.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		failed(1, "server error: %v\n", err)
	}

	code := <-app.exit
	if code != 0 {
		failed(code, "app exit with code: %d\n", code)
	} else {
		os.Exit(code)
	}

}

func (app *App) AddCleanupFunc(f func(context.Context)) {
	app.cleanupFuncs = append(app.cleanupFuncs, f)
}

func failed(code int, s string, args ...interface{}) {
	fmt.Printf(s, args...)
	os.Exit(code)
}
