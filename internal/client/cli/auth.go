package cli

import (
	"context"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/client/auth"
	"github.com/dmitrijs2005/authkeeper/internal/client/oauth"
	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// getSimpleText, getPassword and confirm are indirections used to facilitate
// testing. They point to interactive input helpers and can be swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
	confirm       = Confirm
)

// readPasswordString reads a password and returns it as a string, wiping the
// raw bytes.
func readPasswordString() (string, error) {
	pw, err := getPassword(os.Stdout)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// Register prompts for name, email and password and creates an account.
// It does not log the user in.
func (a *App) Register(ctx context.Context) error {
	var in auth.RegisterInput
	var err error

	if in.Name, err = getSimpleText(a.reader, "Enter name", os.Stdout); err != nil {
		return err
	}
	if in.Email, err = getSimpleText(a.reader, "Enter email", os.Stdout); err != nil {
		return err
	}
	if in.Password, err = readPasswordString(); err != nil {
		return err
	}

	if err := auth.ValidateRegister(&in); err != nil {
		a.report(ctx, "Registration failed", err)
		return err
	}

	msg, err := a.auth.Register(ctx, in.Name, in.Email, in.Password)
	if err != nil {
		a.report(ctx, "Registration failed", err)
		return err
	}

	if msg == "" {
		msg = "Registration successful"
	}
	printlnFn(msg + ". You can log in now.")
	return nil
}

// Login prompts for email and password and starts a session.
func (a *App) Login(ctx context.Context) error {
	var in auth.LoginInput
	var err error

	if in.Email, err = getSimpleText(a.reader, "Enter email", os.Stdout); err != nil {
		return err
	}
	if in.Password, err = readPasswordString(); err != nil {
		return err
	}

	if err := auth.ValidateLogin(&in); err != nil {
		a.report(ctx, "Login failed", err)
		return err
	}

	if err := a.auth.Login(ctx, in.Email, in.Password); err != nil {
		a.report(ctx, "Login failed", err)
		return err
	}

	printlnFn("Login successful")
	return nil
}

// OAuth prints the provider's authorization URL, then waits for the user to
// paste the URL the browser was redirected to.
func (a *App) OAuth(ctx context.Context, provider string) error {
	authURL, err := a.oauth.AuthCodeURL(ctx, provider)
	if err != nil {
		a.report(ctx, "OAuth login failed", err)
		if providers := a.oauth.Providers(); len(providers) > 0 {
			printlnFn("Configured providers:", providers)
		}
		return err
	}

	printlnFn("Open this URL in your browser and authorize the application:")
	printlnFn(authURL)

	redirected, err := getSimpleText(a.reader, "Paste the URL you were redirected to", os.Stdout)
	if err != nil {
		return err
	}

	code, state, err := oauth.ParseCallbackURL(redirected)
	if err == nil {
		err = a.oauth.Callback(ctx, provider, code, state)
	}
	if err != nil {
		a.report(ctx, "OAuth login failed", err)
		return err
	}

	printlnFn("Login successful")
	return nil
}

// Logout always succeeds from the user's point of view.
func (a *App) Logout(ctx context.Context) error {
	a.auth.Logout(ctx)
	printlnFn("Logged out")
	return nil
}
