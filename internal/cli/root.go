// Package cli implements messenger-profile, the command that manages the
// page's Messenger profile: greeting text, the Get Started button and the
// persistent menu.
package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyellow/messenger-bot-go/internal/config"
	"github.com/garyellow/messenger-bot-go/internal/logger"
	"github.com/garyellow/messenger-bot-go/internal/messenger"
)

// ProfileClient is the part of the Graph API client the commands use.
type ProfileClient interface {
	SetGreetings(ctx context.Context, greetings ...messenger.Greeting) error
	SetGetStartedButton(ctx context.Context, payload string) error
	DeleteGetStartedButton(ctx context.Context) error
	SetLocalizedPersistentMenu(ctx context.Context, menus ...messenger.PersistentMenu) error
	DeletePersistentMenu(ctx context.Context) error
}

// ClientFactory builds the client once flags are parsed.
type ClientFactory func(logLevel string, stderr io.Writer) (ProfileClient, error)

type rootOptions struct {
	logLevel  string
	newClient ClientFactory
	client    ProfileClient
}

// NewRootCmd builds the command tree. A nil factory talks to the Graph API
// using the environment configuration.
func NewRootCmd(factory ClientFactory) *cobra.Command {
	if factory == nil {
		factory = graphClient
	}
	opts := &rootOptions{newClient: factory}

	cmd := &cobra.Command{
		Use:   "messenger-profile",
		Short: "Manage the page's Messenger profile",
		Long:  "messenger-profile sets or removes the greeting, the Get Started button and the persistent menu of the page the access token belongs to.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			c, err := opts.newClient(opts.logLevel, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts.client = c
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newGreetingCmd(opts))
	cmd.AddCommand(newGetStartedCmd(opts))
	cmd.AddCommand(newMenuCmd(opts))
	cmd.AddCommand(newApplyCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command against the Graph API.
func Execute() error {
	return NewRootCmd(nil).Execute()
}

func graphClient(logLevel string, stderr io.Writer) (ProfileClient, error) {
	cfg, err := config.LoadGraph()
	if err != nil {
		return nil, err
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return messenger.NewClient(messenger.ClientConfig{
		BaseURL:     cfg.GraphBaseURL(),
		AccessToken: cfg.PageAccessToken,
		MaxRetries:  cfg.SendMaxRetries,
		Logger:      logger.NewWithWriter(logLevel, stderr),
	}), nil
}
