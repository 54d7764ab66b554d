package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestDownloadJob_MarkFailed(t *testing.T) {
	job := &DownloadJob{MaxRetries: 2, Status: JobStatusInProgress, OwnerID: "owner"}

	job.MarkFailed("connection reset")
	if job.Status != JobStatusPending {
		t.Errorf("Status = %v, want %v", job.Status, JobStatusPending)
	}
	if job.NextRetryAt == nil {
		t.Error("NextRetryAt should be set while retries remain")
	}
	if job.OwnerID != "" {
		t.Errorf("OwnerID = %q, want empty", job.OwnerID)
	}

	job.MarkFailed("connection reset")
	if job.Status != JobStatusFailed {
		t.Errorf("Status = %v, want %v", job.Status, JobStatusFailed)
	}
	if job.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", job.RetryCount)
	}
	if job.LastError != "connection reset" {
		t.Errorf("LastError = %q", job.LastError)
	}
}

func TestDownloadJob_ClaimAndReset(t *testing.T) {
	job := &DownloadJob{Status: JobStatusPending, BytesDownloaded: 100}

	job.Claim("owner-1")
	if job.Status != JobStatusInProgress || job.OwnerID != "owner-1" || job.ClaimedAt == nil {
		t.Fatalf("unexpected claimed job: %+v", job)
	}

	job.ResetForRetry()
	if job.Status != JobStatusPending || job.OwnerID != "" || job.BytesDownloaded != 0 {
		t.Errorf("unexpected reset job: %+v", job)
	}
}

func TestDownloadJob_Fail(t *testing.T) {
	job := &DownloadJob{MaxRetries: 5, Status: JobStatusInProgress, OwnerID: "owner"}
	job.Fail("404 not found")

	if job.Status != JobStatusFailed || job.OwnerID != "" || job.NextRetryAt != nil {
		t.Errorf("unexpected failed job: %+v", job)
	}
	if job.RetryCount != 1 || job.LastError != "404 not found" {
		t.Errorf("failure not recorded: %+v", job)
	}
}

func TestDownloadJob_RetryWait(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	job := &DownloadJob{}
	if got := job.RetryWait(now); got != 0 {
		t.Errorf("RetryWait() without backoff = %v", got)
	}

	next := now.Add(10 * time.Second)
	job.NextRetryAt = &next
	if got := job.RetryWait(now); got != 10*time.Second {
		t.Errorf("RetryWait() = %v, want 10s", got)
	}
	if got := job.RetryWait(now.Add(time.Minute)); got != 0 {
		t.Errorf("RetryWait() after backoff = %v, want 0", got)
	}
}

func TestDownloadJob_Release(t *testing.T) {
	job := &DownloadJob{Status: JobStatusPending, BytesDownloaded: 4096, RetryCount: 1}
	job.Claim("owner-1")
	job.Release()

	if job.Status != JobStatusPending || job.OwnerID != "" || job.ClaimedAt != nil {
		t.Errorf("unexpected released job: %+v", job)
	}
	if job.BytesDownloaded != 4096 || job.RetryCount != 1 {
		t.Errorf("Release should keep progress and retry count: %+v", job)
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 10 * time.Second},
		{3, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := RetryBackoff(tt.attempt); got != tt.want {
			t.Errorf("RetryBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestGameVersion_Validate(t *testing.T) {
	valid := strings.Repeat("ab", 32)

	tests := []struct {
		name    string
		version GameVersion
		wantErr bool
	}{
		{
			name:    "valid",
			version: GameVersion{Version: "1.0.0", Checksum: valid, FileSize: 10},
		},
		{
			name:    "uppercase checksum",
			version: GameVersion{Version: "1.0.0", Checksum: strings.ToUpper(valid)},
		},
		{
			name:    "missing version",
			version: GameVersion{Checksum: valid},
			wantErr: true,
		},
		{
			name:    "short checksum",
			version: GameVersion{Version: "1.0.0", Checksum: "abcd"},
			wantErr: true,
		},
		{
			name:    "non hex checksum",
			version: GameVersion{Version: "1.0.0", Checksum: strings.Repeat("zz", 32)},
			wantErr: true,
		},
		{
			name:    "negative size",
			version: GameVersion{Version: "1.0.0", Checksum: valid, FileSize: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.version.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error should wrap ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCredentials_Validate(t *testing.T) {
	if err := (&Credentials{Username: "a", Password: "b"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (&Credentials{Username: "a"}).Validate(); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func signedToken(t *testing.T, exp *time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "player-1"}
	if exp != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*exp)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return token
}

func TestSession_ExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	s := &Session{Token: signedToken(t, &exp)}
	got, ok := s.ExpiresAt()
	if !ok {
		t.Fatal("expected expiry to be readable")
	}
	if !got.Equal(exp) {
		t.Errorf("ExpiresAt() = %v, want %v", got, exp)
	}

	if _, ok := (&Session{Token: signedToken(t, nil)}).ExpiresAt(); ok {
		t.Error("token without exp should report no expiry")
	}
	if _, ok := (&Session{Token: "opaque-token"}).ExpiresAt(); ok {
		t.Error("opaque token should report no expiry")
	}
}

func TestSession_ExpiresWithin(t *testing.T) {
	now := time.Now()
	exp := now.Add(2 * time.Minute)
	s := &Session{Token: signedToken(t, &exp)}

	if !s.ExpiresWithin(5*time.Minute, now) {
		t.Error("token expiring in 2m should be within 5m")
	}
	if s.ExpiresWithin(time.Minute, now) {
		t.Error("token expiring in 2m should not be within 1m")
	}
	if (&Session{Token: "opaque"}).ExpiresWithin(time.Hour, now) {
		t.Error("opaque token should never report expiry")
	}
}
