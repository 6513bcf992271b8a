package cli

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/client/auth"
	"github.com/dmitrijs2005/authkeeper/internal/client/client"
)

func (a *App) Status(ctx context.Context) error {
	printlnFn("Session:", a.auth.State(ctx).String())
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	p, err := a.auth.Profile(ctx)
	if err != nil {
		a.report(ctx, "Cannot load profile", err)
		return err
	}
	printlnFn("ID:   ", p.ID)
	printlnFn("Name: ", p.Name)
	printlnFn("Email:", p.Email)
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.auth.Refresh(ctx); err != nil {
		a.report(ctx, "Token refresh failed", err)
		return err
	}
	printlnFn("Token refreshed")
	return nil
}

// Delete asks for confirmation and removes the account.
func (a *App) Delete(ctx context.Context) error {
	ok, err := confirm(a.reader, "Delete your account permanently?", os.Stdout)
	if err != nil {
		return err
	}
	if !ok {
		printlnFn("Cancelled")
		return nil
	}

	msg, err := a.auth.DeleteAccount(ctx)
	if err != nil {
		a.report(ctx, "Account deletion failed", err)
		return err
	}
	if msg == "" {
		msg = "Account deleted"
	}
	printlnFn(msg)
	return nil
}

// report prints a one-line explanation of err prefixed with action and logs
// the full error.
func (a *App) report(ctx context.Context, action string, err error) {
	a.log.Debug(ctx, action, "error", err)
	printlnFn(action+":", userMessage(err))
}

func userMessage(err error) string {
	var (
		ve *auth.ValidationError
		ae *auth.AuthError
		he *client.HTTPError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Err.Error()
	case errors.Is(err, auth.ErrSessionExpired):
		return auth.ErrSessionExpired.Error()
	case errors.Is(err, auth.ErrNotLoggedIn):
		return "you are not logged in"
	case errors.As(err, &ae):
		return ae.Message
	case errors.Is(err, client.ErrUnavailable):
		return "server is unreachable, check your connection"
	case errors.As(err, &he):
		return he.Message
	}
	return err.Error()
}
