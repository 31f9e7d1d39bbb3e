package messenger

import (
	"context"
	"net/http"

	"github.com/garyellow/messenger-bot-go/internal/errors"
)

// Greeting is a localized greeting text shown before the conversation starts.
type Greeting struct {
	Locale string `json:"locale"`
	Text   string `json:"text"`
}

// PersistentMenu is the menu for one locale.
type PersistentMenu struct {
	Locale                string   `json:"locale"`
	ComposerInputDisabled bool     `json:"composer_input_disabled"`
	CallToActions         []Button `json:"call_to_actions"`
}

type getStarted struct {
	Payload string `json:"payload"`
}

type profileRequest struct {
	Greeting       []Greeting       `json:"greeting,omitempty"`
	GetStarted     *getStarted      `json:"get_started,omitempty"`
	PersistentMenu []PersistentMenu `json:"persistent_menu,omitempty"`
	Fields         []string         `json:"fields,omitempty"`
}

const profileEndpoint = "messenger_profile"

// SetGreetingText sets the default-locale greeting.
func (c *Client) SetGreetingText(ctx context.Context, text string) error {
	if text == "" {
		return errors.NewValidationError("greeting", "must not be empty")
	}
	return c.SetGreetings(ctx, Greeting{Locale: "default", Text: text})
}

// SetGreetings sets localized greetings.
func (c *Client) SetGreetings(ctx context.Context, greetings ...Greeting) error {
	if len(greetings) == 0 {
		return errors.NewValidationError("greeting", "at least one greeting is required")
	}
	return c.do(ctx, http.MethodPost, profileEndpoint, profileRequest{Greeting: greetings}, nil)
}

// SetGetStartedButton installs the Get Started button. An empty payload uses
// GetStartedPayload.
func (c *Client) SetGetStartedButton(ctx context.Context, payload string) error {
	if payload == "" {
		payload = GetStartedPayload
	}
	return c.do(ctx, http.MethodPost, profileEndpoint, profileRequest{GetStarted: &getStarted{Payload: payload}}, nil)
}

// DeleteGetStartedButton removes the Get Started button.
func (c *Client) DeleteGetStartedButton(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, profileEndpoint, profileRequest{Fields: []string{"get_started"}}, nil)
}

// SetPersistentMenu installs a default-locale menu built from buttons.
func (c *Client) SetPersistentMenu(ctx context.Context, buttons []Button, disableInput bool) error {
	if len(buttons) == 0 {
		return errors.NewValidationError("persistent_menu", "at least one button is required")
	}
	return c.SetLocalizedPersistentMenu(ctx, PersistentMenu{
		Locale:                "default",
		ComposerInputDisabled: disableInput,
		CallToActions:         buttons,
	})
}

// SetLocalizedPersistentMenu installs one menu per locale as given.
func (c *Client) SetLocalizedPersistentMenu(ctx context.Context, menus ...PersistentMenu) error {
	if len(menus) == 0 {
		return errors.NewValidationError("persistent_menu", "at least one menu is required")
	}
	formatted := make([]PersistentMenu, len(menus))
	for i, m := range menus {
		m.CallToActions = formatButtons(m.CallToActions)
		formatted[i] = m
	}
	return c.do(ctx, http.MethodPost, profileEndpoint, profileRequest{PersistentMenu: formatted}, nil)
}

// DeletePersistentMenu removes the persistent menu.
func (c *Client) DeletePersistentMenu(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, profileEndpoint, profileRequest{Fields: []string{"persistent_menu"}}, nil)
}
