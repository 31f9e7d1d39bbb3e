package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garyellow/messenger-bot-go/internal/messenger"
)

func newGreetingCmd(opts *rootOptions) *cobra.Command {
	var localized []string

	cmd := &cobra.Command{
		Use:   "greeting [text]",
		Short: "Set the greeting shown before a conversation starts",
		Example: `  messenger-profile greeting "Hi {{user_first_name}}!"
  messenger-profile greeting "Hello" --locale zh_TW=哈囉`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var greetings []messenger.Greeting
			if len(args) == 1 {
				greetings = append(greetings, messenger.Greeting{Locale: "default", Text: args[0]})
			}
			for _, l := range localized {
				locale, text, ok := strings.Cut(l, "=")
				if !ok || locale == "" || text == "" {
					return fmt.Errorf("invalid --locale %q, want locale=text", l)
				}
				greetings = append(greetings, messenger.Greeting{Locale: locale, Text: text})
			}
			if len(greetings) == 0 {
				return fmt.Errorf("a greeting text or --locale is required")
			}

			if err := opts.client.SetGreetings(cmd.Context(), greetings...); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Greeting set (%d locale(s))\n", len(greetings))
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&localized, "locale", nil, "localized greeting as locale=text (repeatable)")
	return cmd
}

func newGetStartedCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get-started",
		Short: "Manage the Get Started button",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [payload]",
		Short: "Install the Get Started button",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := messenger.GetStartedPayload
			if len(args) == 1 {
				payload = args[0]
			}
			if err := opts.client.SetGetStartedButton(cmd.Context(), payload); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Get Started button set with payload %s\n", payload)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the Get Started button",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client.DeleteGetStartedButton(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Get Started button removed")
			return nil
		},
	})
	return cmd
}

func newMenuCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "Manage the persistent menu",
	}

	var (
		disableInput bool
		urls         []string
	)
	set := &cobra.Command{
		Use:   "set [title...]",
		Short: "Install a default-locale menu",
		Long:  "Each title becomes a postback button whose payload is derived from the title. --url adds a web_url button given as title=url.",
		Example: `  messenger-profile menu set "Help" "Settings" --url "Website=https://example.com"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			buttons := messenger.PostbackButtons(args...)
			for _, u := range urls {
				title, link, ok := strings.Cut(u, "=")
				if !ok || title == "" || link == "" {
					return fmt.Errorf("invalid --url %q, want title=url", u)
				}
				buttons = append(buttons, messenger.Button{Type: "web_url", Title: title, URL: link})
			}
			if len(buttons) == 0 {
				return fmt.Errorf("at least one button is required")
			}

			menu := messenger.PersistentMenu{
				Locale:                "default",
				ComposerInputDisabled: disableInput,
				CallToActions:         buttons,
			}
			if err := opts.client.SetLocalizedPersistentMenu(cmd.Context(), menu); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Persistent menu set with %d button(s)\n", len(buttons))
			return nil
		},
	}
	set.Flags().BoolVar(&disableInput, "disable-input", false, "hide the composer so users can only use the menu")
	set.Flags().StringArrayVar(&urls, "url", nil, "web_url button as title=url (repeatable)")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the persistent menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client.DeletePersistentMenu(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Persistent menu removed")
			return nil
		},
	})
	return cmd
}
