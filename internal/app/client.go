package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	intrnl "roomchat/internal"
	"roomchat/internal/render"
	"roomchat/internal/socket"
	"roomchat/internal/upload"
)

const dialTimeout = 10 * time.Second

// ClientOptions turns a validated config into everything the TUI needs.
func ClientOptions(cfg ClientConfig, logger zerolog.Logger) (intrnl.ClientOptions, error) {
	if err := cfg.Validate(); err != nil {
		return intrnl.ClientOptions{}, err
	}
	uploadURL, err := cfg.ResolvedUploadURL()
	if err != nil {
		return intrnl.ClientOptions{}, err
	}
	attachmentBase, err := HTTPBaseFromSocket(cfg.ServerURL)
	if err != nil {
		return intrnl.ClientOptions{}, err
	}

	failurePolicy := upload.LogFailures(logger)
	if cfg.AlertUploadFailures {
		failurePolicy = upload.AlertFailures(logger)
	}
	var filter render.BodyFilter
	if cfg.StripMarkup {
		filter = render.StripMarkup()
	}

	return intrnl.ClientOptions{
		Username:       cfg.Username,
		Room:           cfg.Room,
		ServerURL:      cfg.ServerURL,
		Dial:           socketDialer(cfg.ServerURL, cfg.Username, logger),
		Dispatcher:     upload.NewDispatcher(uploadURL, nil, logger),
		FailurePolicy:  failurePolicy,
		BodyFilter:     filter,
		BrowseDir:      cfg.BrowseDir,
		AttachmentBase: attachmentBase,
		Metrics:        intrnl.NewMetrics(),
		Logger:         logger,
	}, nil
}

// RunClient launches the Bubble Tea TUI with the provided configuration.
func RunClient(ctx context.Context, cfg ClientConfig, logger zerolog.Logger) error {
	opts, err := ClientOptions(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info().
		Str("server_url", cfg.ServerURL).
		Str("user", cfg.Username).
		Str("room", cfg.Room).
		Msg("starting client")
	return intrnl.RunClient(ctx, opts)
}

func socketDialer(serverURL, username string, logger zerolog.Logger) intrnl.DialFunc {
	return func(ctx context.Context) (intrnl.SocketConn, error) {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		conn, err := socket.Dial(dialCtx, serverURL, username, logger)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
