package port

import (
	"context"

	"github.com/remakesof/launcher/internal/domain"
)

// GameAPI defines the launcher backend operations
type GameAPI interface {
	// Login authenticates a player and returns the issued session
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)

	// RefreshToken exchanges a still-valid token for a new session
	RefreshToken(ctx context.Context, token string) (*domain.Session, error)

	// LatestVersion fetches the release metadata of the newest game build
	LatestVersion(ctx context.Context) (*domain.GameVersion, error)

	// DownloadURL resolves the absolute archive URL for a version
	DownloadURL(v *domain.GameVersion) (string, error)
}
