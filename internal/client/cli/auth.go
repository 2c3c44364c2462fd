package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errAlreadySignedIn = errors.New("already signed in, logout first")

func (a *App) readCredentials() (string, []byte, error) {
	email, err := getSimpleText(a.in, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

// Register creates an account and signs in with it.
func (a *App) Register(ctx context.Context) error {
	if a.isLoggedIn() {
		return errAlreadySignedIn
	}
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.SignUp(ctx, email, string(password)); err != nil {
		return describeAuthError(err)
	}
	a.setUser(email)
	printlnFn("Success!")
	return nil
}

// Login authenticates and binds the session; the engine performs an
// initial sync before Login returns.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		return errAlreadySignedIn
	}
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.SignIn(ctx, email, string(password)); err != nil {
		return describeAuthError(err)
	}
	a.setUser(email)
	printlnFn("Login successful")
	return nil
}

// Logout saves pending edits, then forgets the session. Local notes stay in
// the database and come back on the next login.
func (a *App) Logout(ctx context.Context) error {
	if err := a.editor.Flush(ctx); err != nil {
		a.log.Warn(ctx, "pending edit not saved", "error", err)
	}
	a.editor.Open("")

	if err := a.auth.SignOut(ctx); err != nil {
		return err
	}
	a.setUser("")
	printlnFn("Logged out")
	return nil
}

// restoreSession rebinds a session saved by a previous run.
func (a *App) restoreSession(ctx context.Context) {
	email, err := a.auth.Restore(ctx)
	if err != nil {
		a.log.Warn(ctx, "session restore failed", "error", err)
		return
	}
	if email != "" {
		a.setUser(email)
		printlnFn("Signed in as " + email)
	}
}

func describeAuthError(err error) error {
	switch {
	case errors.Is(err, client.ErrUnavailable):
		return fmt.Errorf("server unavailable, try again later")
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, common.ErrorUnauthorized):
		return fmt.Errorf("invalid email or password")
	case errors.Is(err, common.ErrorAlreadyExists):
		return fmt.Errorf("account already exists")
	}
	return err
}
