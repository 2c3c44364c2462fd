// Package services contains application services for the notesync client.
// This file defines the authentication service: sign-up, sign-in, sign-out,
// session restore on start, and persistence of rotated tokens.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/notesync/internal/client/client"
	"github.com/dmitrijs2005/notesync/internal/client/models"
	sessionrepo "github.com/dmitrijs2005/notesync/internal/client/repositories/session"
	"github.com/dmitrijs2005/notesync/internal/client/session"
	"github.com/dmitrijs2005/notesync/internal/common"
	"github.com/dmitrijs2005/notesync/internal/logging"
)

var ErrEmptyCredentials = errors.New("email and password are required")

// AuthService drives session transitions for the CLI.
//
// Contract:
//   - SignUp: create the account on the server, then sign in.
//   - SignIn: authenticate, persist the session, bind the user.
//   - SignOut: forget tokens and the persisted session, unbind the user.
//   - Restore: rebind the persisted session, if any; returns its email.
//   - Ping: check server liveness.
//
// Every transition is announced through session.Session, whose listeners
// (the sync engine) react to it.
type AuthService interface {
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	Restore(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client  client.Client
	repo    sessionrepo.Repository
	session *session.Session
	log     logging.Logger
}

// NewAuthService constructs an AuthService. Tokens rotated by the client
// are written back to repo so that a restored session stays usable.
func NewAuthService(c client.Client, repo sessionrepo.Repository, s *session.Session, log logging.Logger) AuthService {
	a := &authService{client: c, repo: repo, session: s, log: log.With("module", "auth")}
	c.OnTokensRefreshed(a.persistTokens)
	return a
}

func (a *authService) persistTokens(access, refresh string) {
	ctx := context.Background()
	cur, err := a.repo.Load(ctx)
	if err != nil || cur == nil {
		return
	}
	cur.AccessToken = access
	cur.RefreshToken = refresh
	if err := a.repo.Save(ctx, cur); err != nil {
		a.log.Warn(ctx, "failed to persist rotated tokens", "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *authService) SignUp(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return ErrEmptyCredentials
	}
	if err := a.client.Register(ctx, email, password); err != nil {
		return fmt.Errorf("register error: %w", err)
	}
	return a.SignIn(ctx, email, password)
}

func (a *authService) SignIn(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return ErrEmptyCredentials
	}

	userID, err := a.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login error: %w", err)
	}
	if userID == "" {
		return fmt.Errorf("login error: %w", common.ErrorInternal)
	}

	access, refresh := a.client.Tokens()
	s := &models.Session{UserID: userID, Email: email, AccessToken: access, RefreshToken: refresh}
	if err := a.repo.Save(ctx, s); err != nil {
		return fmt.Errorf("session saving error: %w", err)
	}

	a.log.Info(ctx, "signed in", "user_id", userID)
	a.session.Bind(ctx, userID)
	return nil
}

func (a *authService) SignOut(ctx context.Context) error {
	a.client.SetTokens("", "")
	if err := a.repo.Clear(ctx); err != nil {
		return fmt.Errorf("session clearing error: %w", err)
	}
	a.log.Info(ctx, "signed out")
	a.session.Clear(ctx)
	return nil
}

func (a *authService) Restore(ctx context.Context) (string, error) {
	s, err := a.repo.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("session loading error: %w", err)
	}
	if !s.Authenticated() {
		return "", nil
	}

	a.client.SetTokens(s.AccessToken, s.RefreshToken)
	a.log.Info(ctx, "session restored", "user_id", s.UserID)
	a.session.Bind(ctx, s.UserID)
	if s.Email == "" {
		return s.UserID, nil
	}
	return s.Email, nil
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
