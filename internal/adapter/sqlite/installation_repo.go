package sqlite

import (
	"database/sql"
	"errors"

	"github.com/remakesof/launcher/internal/domain"
)

// SaveInstallation records a verified archive, replacing any earlier
// record for the same version
func (s *Store) SaveInstallation(inst *domain.Installation) error {
	if inst.InstalledAt.IsZero() {
		inst.InstalledAt = now()
	}

	query := `
		INSERT INTO installations (version, archive_path, checksum, size, installed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			archive_path = excluded.archive_path,
			checksum = excluded.checksum,
			size = excluded.size,
			installed_at = excluded.installed_at
		RETURNING id
	`

	return s.db.QueryRow(query,
		inst.Version, inst.ArchivePath, inst.Checksum, inst.Size, inst.InstalledAt.UTC(),
	).Scan(&inst.ID)
}

// GetLatestInstallation returns the most recently installed version
func (s *Store) GetLatestInstallation() (*domain.Installation, error) {
	query := `
		SELECT id, version, archive_path, checksum, size, installed_at
		FROM installations
		ORDER BY installed_at DESC, id DESC
		LIMIT 1
	`
	return scanInstallation(s.db.QueryRow(query))
}

// GetInstallation returns the record for a version
func (s *Store) GetInstallation(version string) (*domain.Installation, error) {
	query := `
		SELECT id, version, archive_path, checksum, size, installed_at
		FROM installations
		WHERE version = ?
	`
	return scanInstallation(s.db.QueryRow(query, version))
}

// DeleteInstallation removes the record for a version
func (s *Store) DeleteInstallation(version string) error {
	_, err := s.db.Exec("DELETE FROM installations WHERE version = ?", version)
	return err
}

func scanInstallation(row rowScanner) (*domain.Installation, error) {
	inst := &domain.Installation{}
	err := row.Scan(&inst.ID, &inst.Version, &inst.ArchivePath, &inst.Checksum, &inst.Size, &inst.InstalledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}
