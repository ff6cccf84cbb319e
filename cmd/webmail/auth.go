package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func runSignup(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	_ = fs.Parse(args)

	var name, password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&name).
				Validate(validateRequired("Name")),
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(email).
				Validate(validateRequired("Email")),
			huh.NewInput().
				Title("Password").
				Description("At least 6 characters").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(func(s string) error {
					if len(s) < 6 {
						return errors.New("password must be at least 6 characters")
					}
					return nil
				}),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	acct, err := a.client.Signup(ctx, name, *email, password)
	if err != nil {
		return errors.New(messageOf(err, "Signup failed"))
	}
	fmt.Fprintf(a.out, "Welcome, %s <%s>\n", acct.Name, acct.Email)
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	token := fs.String("token", "", "access token handed back by a browser sign-in")
	_ = fs.Parse(args)

	if *token != "" {
		return adoptToken(ctx, a, *token)
	}

	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(email).
				Validate(validateRequired("Email")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(validateRequired("Password")),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return err
	}

	acct, err := a.client.Login(ctx, *email, password)
	if err != nil {
		return errors.New(messageOf(err, "Login failed"))
	}
	fmt.Fprintf(a.out, "Signed in as %s <%s>\n", acct.Name, acct.Email)
	return nil
}

// adoptToken stores token and checks it by loading the account. A
// rejected token is cleared again by Me.
func adoptToken(ctx context.Context, a *app, token string) error {
	if err := a.client.AdoptToken(strings.TrimSpace(token)); err != nil {
		return err
	}
	acct, err := a.client.Me(ctx)
	if err != nil {
		return errors.New(messageOf(err, "Login failed"))
	}
	fmt.Fprintf(a.out, "Signed in as %s <%s>\n", acct.Name, acct.Email)
	return nil
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func runWhoami(ctx context.Context, a *app, _ []string) error {
	acct, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s>\n", acct.Name, acct.Email)
	if acct.IsProviderLinked {
		fmt.Fprintf(a.out, "linked provider: %s\n", acct.LinkedProviderEmail)
	}
	return nil
}

func runLink(ctx context.Context, a *app, _ []string) error {
	u, err := a.client.ProviderAuthURL(ctx)
	if err != nil {
		return errors.New(messageOf(err, "Failed to start linking"))
	}
	fmt.Fprintln(a.out, "Open this URL to link your mailbox, then run `webmail login -token <token>`:")
	fmt.Fprintln(a.out, u)
	return nil
}

// runUnlink disconnects the provider and builds a fresh controller, since
// nothing built for the linked mailbox carries over.
func runUnlink(ctx context.Context, a *app, _ []string) error {
	if err := a.client.DisconnectProvider(ctx); err != nil {
		return errors.New(messageOf(err, "Failed to disconnect"))
	}
	c, err := a.controller(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Provider disconnected; mailbox now uses the %s store\n", c.Provider().Kind())
	return nil
}
