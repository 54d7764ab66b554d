package repository

import (
	"github.com/remakesof/launcher/internal/domain"
)

// InstallationRepository defines the interface for installed versions
type InstallationRepository interface {
	// SaveInstallation records a verified archive, replacing any earlier
	// record for the same version
	SaveInstallation(inst *domain.Installation) error

	// GetLatestInstallation returns the most recently installed version
	// Returns nil if nothing is installed
	GetLatestInstallation() (*domain.Installation, error)

	// GetInstallation returns the record for a version
	// Returns nil if that version is not installed
	GetInstallation(version string) (*domain.Installation, error)

	// DeleteInstallation removes the record for a version
	DeleteInstallation(version string) error
}
