package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/remakesof/launcher/internal/domain"
	"github.com/remakesof/launcher/internal/port"
)

// DefaultRefreshSkew is how long before expiry EnsureFresh renews a token
const DefaultRefreshSkew = 5 * time.Minute

// Status describes the stored session
type Status struct {
	LoggedIn  bool
	HasExpiry bool
	ExpiresAt time.Time
	Expired   bool
}

// Service manages the player session
type Service struct {
	api    port.GameAPI
	tokens port.TokenStore
	skew   time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a new auth Service. A skew of 0 uses DefaultRefreshSkew.
func NewService(api port.GameAPI, tokens port.TokenStore, skew time.Duration, logger *zap.Logger) *Service {
	if skew <= 0 {
		skew = DefaultRefreshSkew
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:    api,
		tokens: tokens,
		skew:   skew,
		now:    time.Now,
		logger: logger,
	}
}

// Login authenticates against the backend. The token is kept on disk only
// when remember is set; otherwise any previously stored token is removed.
func (s *Service) Login(ctx context.Context, creds domain.Credentials, remember bool) (*domain.Session, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	session, err := s.api.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	if remember {
		if err := s.tokens.SaveToken(session.Token); err != nil {
			return nil, fmt.Errorf("failed to store token: %w", err)
		}
	} else if err := s.tokens.ClearToken(); err != nil {
		s.logger.Warn("failed to clear stored token", zap.Error(err))
	}

	s.logger.Info("logged in",
		zap.String("username", session.Username),
		zap.String("player_id", session.PlayerID),
		zap.Bool("remembered", remember),
	)
	return session, nil
}

// Logout forgets the stored token
func (s *Service) Logout() error {
	if err := s.tokens.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}

// Refresh exchanges the stored token for a new one. A token the backend
// rejects is removed so the next call reports ErrNotLoggedIn.
func (s *Service) Refresh(ctx context.Context) (*domain.Session, error) {
	token, err := s.tokens.LoadToken()
	if err != nil {
		return nil, err
	}

	session, err := s.api.RefreshToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrAuthFailed) {
			if cerr := s.tokens.ClearToken(); cerr != nil {
				s.logger.Warn("failed to clear rejected token", zap.Error(cerr))
			}
		}
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	if err := s.tokens.SaveToken(session.Token); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	s.logger.Debug("token refreshed", zap.String("username", session.Username))
	return session, nil
}

// EnsureFresh returns a usable token, refreshing it when it expires within
// the configured skew. Tokens without a readable expiry are returned as is.
func (s *Service) EnsureFresh(ctx context.Context) (string, error) {
	token, err := s.tokens.LoadToken()
	if err != nil {
		return "", err
	}

	current := &domain.Session{Token: token}
	exp, ok := current.ExpiresAt()
	if !ok {
		return token, nil
	}

	now := s.now()
	if current.ExpiresWithin(0, now) {
		if cerr := s.tokens.ClearToken(); cerr != nil {
			s.logger.Warn("failed to clear expired token", zap.Error(cerr))
		}
		return "", fmt.Errorf("%w: session expired at %s", domain.ErrNotLoggedIn, exp.Format(time.RFC3339))
	}
	if !current.ExpiresWithin(s.skew, now) {
		return token, nil
	}

	session, err := s.Refresh(ctx)
	if err != nil {
		return "", err
	}
	return session.Token, nil
}

// Status reports whether a token is stored and when it expires
func (s *Service) Status() (*Status, error) {
	token, err := s.tokens.LoadToken()
	if errors.Is(err, domain.ErrNotLoggedIn) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, err
	}

	st := &Status{LoggedIn: true}
	if exp, ok := domain.TokenExpiry(token); ok {
		st.HasExpiry = true
		st.ExpiresAt = exp
		st.Expired = !exp.After(s.now())
	}
	return st, nil
}
