package port

import (
	"github.com/remakesof/launcher/internal/domain/repository"
)

// DownloadJobRepository is an alias to domain repository interface
type DownloadJobRepository = repository.DownloadJobRepository

// InstallationRepository is an alias to domain repository interface
type InstallationRepository = repository.InstallationRepository

// Store is an alias to domain repository interface
type Store = repository.Store
