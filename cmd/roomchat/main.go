package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	intrnl "roomchat/internal"
	"roomchat/internal/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "roomchat: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configPath string

	cmd := &cobra.Command{
		Use:           "roomchat [room]",
		Short:         "Chat in shared and private rooms from your terminal",
		Version:       intrnl.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				v.Set(app.KeyRoom, args[0])
			}
			return runClient(cmd.Context(), v, configPath)
		},
	}

	flags := cmd.Flags()
	flags.String("server-url", app.DefaultServerURL, "chat server websocket URL (ws:// or wss://)")
	flags.String("upload-url", "", "attachment upload URL (default: derived from --server-url)")
	flags.String("user", "", "display name (default: $ROOMCHAT_USER, then $USER)")
	flags.String("room", app.DefaultRoom, "room to join at startup")
	flags.String("log-file", app.DefaultLogPath(), "log file path")
	flags.String("log-level", app.DefaultLogLevel, "log level (trace, debug, info, warn, error)")
	flags.Bool("strip-markup", false, "strip HTML tags from incoming message bodies")
	flags.Bool("alert-upload-failures", false, "show an alert when an upload gets no usable reply")
	flags.String("browse-dir", "", "starting directory of the file picker")
	flags.StringVar(&configPath, "config", "", "config file (json, yaml or toml)")

	app.SetDefaults(v)
	if err := bindFlags(v, flags); err != nil {
		// flag names are fixed above; a failure here is a programming error
		panic(err)
	}
	return cmd
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		app.KeyServerURL:           "server-url",
		app.KeyUploadURL:           "upload-url",
		app.KeyUser:                "user",
		app.KeyRoom:                "room",
		app.KeyLogFile:             "log-file",
		app.KeyLogLevel:            "log-level",
		app.KeyStripMarkup:         "strip-markup",
		app.KeyAlertUploadFailures: "alert-upload-failures",
		app.KeyBrowseDir:           "browse-dir",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind %s: %w", name, err)
		}
	}
	return nil
}

func runClient(parent context.Context, v *viper.Viper, configPath string) error {
	cfg, err := app.LoadClientConfig(v, configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := app.NewLogger(app.DefaultLogRotation(cfg.LogFile), cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.RunClient(ctx, cfg, logger)
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Msg("client exited with error")
	}
	return err
}
