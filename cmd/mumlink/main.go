package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ebonn/mumlink/internal/adapters/stream"
	"github.com/ebonn/mumlink/internal/config"
	"github.com/ebonn/mumlink/internal/core"
	"github.com/ebonn/mumlink/internal/domain"
	"github.com/ebonn/mumlink/internal/session"
	"github.com/ebonn/mumlink/internal/wire"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	conn, err := tls.Dial("tcp", cfg.Server, &tls.Config{
		InsecureSkipVerify: cfg.Insecure,
	})
	if err != nil {
		log.Fatal().Err(err).Str("server", cfg.Server).Msg("dial failed")
	}

	sess, err := session.New(session.Config{
		Username:     cfg.Username,
		Password:     cfg.Password,
		Tokens:       cfg.Tokens,
		PingInterval: cfg.PingInterval,
	}, wire.NewBinaryCodec())
	if err != nil {
		log.Fatal().Err(err).Msg("session setup failed")
	}

	sess.Attach(core.Handlers{
		Connect: func(ev *core.ConnectEvent) {
			log.Info().Str("welcome", ev.WelcomeText).Uint32("bandwidth", ev.MaxBandwidth).Msg("connected")
		},
		Disconnect: func(ev *core.DisconnectEvent) {
			log.Info().Err(ev.Err).Msg("disconnected")
			cancel()
		},
		Reject: func(ev *core.RejectEvent) {
			log.Warn().Uint32("type", ev.Type).Str("reason", ev.Reason).Msg("rejected")
		},
		Message: func(ev *core.TextMessageEvent) {
			name := "server"
			if ev.Sender != nil {
				name = ev.Sender.Name
			}
			log.Info().Str("from", name).Msg(ev.Message)
		},
		UserChange: func(ev *core.UserChangeEvent) {
			log.Debug().Str("user", ev.User.Name).Int("change", int(ev.Kind)).Msg("user changed")
		},
		ChannelChange: func(ev *core.ChannelChangeEvent) {
			log.Debug().Str("channel", ev.Channel.Name).Int("change", int(ev.Kind)).Msg("channel changed")
		},
		Deny: func(ev *domain.DenyEvent) {
			log.Warn().Str("deny", ev.Type.String()).Str("name", ev.Name).Msg("permission denied")
		},
	})

	if err := sess.Connect(ctx, stream.New(conn)); err != nil {
		log.Fatal().Err(err).Msg("connect failed")
	}
	log.Info().Str("server", cfg.Server).Str("user", cfg.Username).Msg("session up")

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	sess.Disconnect()
	log.Info().Msg("Session closed")
}
