package bot

import (
	"context"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"

	"github.com/bwmarrin/discordgo"
)

const DefaultShutdownTimeout = 30 * time.Second

// Session is the part of *discordgo.Session the bot drives
type Session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
}

// NewSession creates a Discord gateway session for a bot token
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, errors.NewValidationError("discord token is required", nil)
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.NewNetworkError("failed to create discord session", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages
	return session, nil
}

type RunOptions struct {
	ShutdownTimeout time.Duration
}

// Run opens the session, ensures services on the first Ready event and blocks
// until ctx is done. It then runs the shutdown hook and closes the session.
func Run(ctx context.Context, session Session, hooks *Hooks, options RunOptions, logger logging.Logger) error {
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = DefaultShutdownTimeout
	}

	removeHandler := session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if r.User != nil {
			logger.Infof("Logged in as %s", r.User.Username)
		}
		hooks.OnReady(ctx)
	})
	defer removeHandler()

	if err := session.Open(); err != nil {
		return errors.NewNetworkError("failed to open discord session", err)
	}

	<-ctx.Done()
	logger.Infof("Shutting down: %v", ctx.Err())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), options.ShutdownTimeout)
	defer cancel()
	hooks.OnShutdown(shutdownCtx)

	if err := session.Close(); err != nil {
		return errors.NewNetworkError("failed to close discord session", err)
	}
	return nil
}
