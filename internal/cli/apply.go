package cli

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/garyellow/messenger-bot-go/internal/messenger"
)

// ProfileFile is the YAML document read by the apply command. Sections left
// out are not touched.
//
//	greeting:
//	  default: "Hi {{user_first_name}}!"
//	get_started: BOT_GET_STARTED
//	menu:
//	  - locale: default
//	    disable_input: false
//	    buttons:
//	      - title: Help
//	      - title: Website
//	        url: https://example.com
type ProfileFile struct {
	Greeting   map[string]string `yaml:"greeting"`
	GetStarted string            `yaml:"get_started"`
	Menu       []MenuFile        `yaml:"menu"`
}

// MenuFile is the menu of one locale.
type MenuFile struct {
	Locale       string       `yaml:"locale"`
	DisableInput bool         `yaml:"disable_input"`
	Buttons      []ButtonFile `yaml:"buttons"`
}

// ButtonFile is a menu entry. A url makes it a web_url button; otherwise it is
// a postback whose payload defaults to one derived from the title.
type ButtonFile struct {
	Title   string `yaml:"title"`
	Payload string `yaml:"payload"`
	URL     string `yaml:"url"`
}

// ParseProfileFile decodes and checks a profile document.
func ParseProfileFile(data []byte) (*ProfileFile, error) {
	var f ProfileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profile file: %w", err)
	}
	if len(f.Greeting) == 0 && f.GetStarted == "" && len(f.Menu) == 0 {
		return nil, fmt.Errorf("profile file sets nothing")
	}
	for i, m := range f.Menu {
		if len(m.Buttons) == 0 {
			return nil, fmt.Errorf("menu[%d]: at least one button is required", i)
		}
		for j, b := range m.Buttons {
			if b.Title == "" {
				return nil, fmt.Errorf("menu[%d].buttons[%d]: title is required", i, j)
			}
		}
	}
	return &f, nil
}

// Greetings returns the greetings sorted with "default" first.
func (f *ProfileFile) Greetings() []messenger.Greeting {
	out := make([]messenger.Greeting, 0, len(f.Greeting))
	if text, ok := f.Greeting["default"]; ok {
		out = append(out, messenger.Greeting{Locale: "default", Text: text})
	}
	for _, locale := range slices.Sorted(maps.Keys(f.Greeting)) {
		if locale == "default" {
			continue
		}
		out = append(out, messenger.Greeting{Locale: locale, Text: f.Greeting[locale]})
	}
	return out
}

// Menus converts the menu section.
func (f *ProfileFile) Menus() []messenger.PersistentMenu {
	out := make([]messenger.PersistentMenu, 0, len(f.Menu))
	for _, m := range f.Menu {
		locale := m.Locale
		if locale == "" {
			locale = "default"
		}
		buttons := make([]messenger.Button, 0, len(m.Buttons))
		for _, b := range m.Buttons {
			if b.URL != "" {
				buttons = append(buttons, messenger.Button{Type: "web_url", Title: b.Title, URL: b.URL})
				continue
			}
			buttons = append(buttons, messenger.Button{Type: "postback", Title: b.Title, Payload: b.Payload})
		}
		out = append(out, messenger.PersistentMenu{
			Locale:                locale,
			ComposerInputDisabled: m.DisableInput,
			CallToActions:         buttons,
		})
	}
	return out
}

func newApplyCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a YAML profile document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			f, err := ParseProfileFile(data)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if len(f.Greeting) > 0 {
				if err := opts.client.SetGreetings(ctx, f.Greetings()...); err != nil {
					return fmt.Errorf("greeting: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Greeting set")
			}
			if f.GetStarted != "" {
				if err := opts.client.SetGetStartedButton(ctx, f.GetStarted); err != nil {
					return fmt.Errorf("get_started: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Get Started button set")
			}
			if len(f.Menu) > 0 {
				if err := opts.client.SetLocalizedPersistentMenu(ctx, f.Menus()...); err != nil {
					return fmt.Errorf("menu: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Persistent menu set")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "profile YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
