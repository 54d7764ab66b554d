package port

// SpaceCheckResult contains detailed space availability information
type SpaceCheckResult struct {
	HasSpace        bool
	RequiredBytes   int64
	FreeBytes       int64
	ReserveBytes    int64
	DiskUsedPct     float64
	MaxDiskUsagePct float64
}

// SpaceManager defines the interface for space management operations
type SpaceManager interface {
	// CheckSpace checks if there's enough space to write the given number
	// of additional bytes into the install directory
	CheckSpace(additionalBytes int64) (*SpaceCheckResult, error)
}
