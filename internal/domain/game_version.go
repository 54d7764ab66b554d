package domain

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// GameVersion is the release metadata served by the launcher backend.
type GameVersion struct {
	Version     string `json:"version" validate:"required"`
	ReleaseDate string `json:"release_date"`
	DownloadURL string `json:"download_url"`
	FileSize    int64  `json:"file_size" validate:"gte=0"`
	Checksum    string `json:"checksum" validate:"required,hexadecimal,len=64"`
}

// Validate checks the metadata before it is trusted for a download.
func (v *GameVersion) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: game version: %v", ErrInvalidInput, err)
	}
	return nil
}

// Installation records a verified archive on disk.
type Installation struct {
	ID          int64
	Version     string
	ArchivePath string
	Checksum    string
	Size        int64
	InstalledAt time.Time
}

// UpdateStatus is the result of comparing the installed and latest versions.
type UpdateStatus struct {
	Latest          *GameVersion
	Installed       *Installation
	UpdateAvailable bool
}

// Credentials carries a login request.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate checks that both fields are present.
func (c *Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: credentials: %v", ErrInvalidInput, err)
	}
	return nil
}
