package installer

import (
	"github.com/remakesof/launcher/internal/port"
)

// SpaceManager checks the install volume before a download starts
type SpaceManager struct {
	fs              port.FileSystem
	reserveBytes    int64
	maxDiskUsagePct float64
}

// Ensure SpaceManager implements port.SpaceManager
var _ port.SpaceManager = (*SpaceManager)(nil)

// NewSpaceManager creates a new SpaceManager. reserveBytes must stay free
// after the download; maxDiskUsagePct of 0 disables the usage ceiling.
func NewSpaceManager(fs port.FileSystem, reserveBytes int64, maxDiskUsagePct float64) *SpaceManager {
	return &SpaceManager{
		fs:              fs,
		reserveBytes:    reserveBytes,
		maxDiskUsagePct: maxDiskUsagePct,
	}
}

// CheckSpace checks if additionalBytes can be written to the install directory
func (sm *SpaceManager) CheckSpace(additionalBytes int64) (*port.SpaceCheckResult, error) {
	if additionalBytes < 0 {
		additionalBytes = 0
	}

	result := &port.SpaceCheckResult{
		RequiredBytes:   additionalBytes,
		ReserveBytes:    sm.reserveBytes,
		MaxDiskUsagePct: sm.maxDiskUsagePct,
	}

	usage, err := sm.fs.GetDiskUsage()
	if err != nil {
		return nil, err
	}
	result.FreeBytes = int64(usage.Free)
	result.DiskUsedPct = usage.UsedPct

	if result.FreeBytes-additionalBytes < sm.reserveBytes {
		return result, nil
	}

	// Check if adding this file would exceed disk limit
	if sm.maxDiskUsagePct > 0 && usage.Total > 0 {
		newUsedPct := float64(usage.Used+uint64(additionalBytes)) / float64(usage.Total) * 100
		if newUsedPct >= sm.maxDiskUsagePct {
			return result, nil
		}
	}

	result.HasSpace = true
	return result, nil
}
