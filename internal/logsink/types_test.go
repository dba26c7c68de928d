package logsink

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntry_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		entry   Entry
		wantErr error
	}{
		{
			name:    "invalid stack",
			entry:   Entry{Stack: "mobile", Level: LevelInfo, Package: PackageService},
			wantErr: ErrInvalidStack,
		},
		{
			name:    "invalid level",
			entry:   Entry{Stack: StackBackend, Level: "trace", Package: PackageService},
			wantErr: ErrInvalidLevel,
		},
		{
			name:    "invalid package",
			entry:   Entry{Stack: StackBackend, Level: LevelInfo, Package: "kernel"},
			wantErr: ErrInvalidPackage,
		},
		{
			name:    "frontend package on backend",
			entry:   Entry{Stack: StackBackend, Level: LevelInfo, Package: PackagePage},
			wantErr: ErrPackageNotAllowed,
		},
		{
			name:    "backend package on frontend",
			entry:   Entry{Stack: StackFrontend, Level: LevelInfo, Package: PackageRepository},
			wantErr: ErrPackageNotAllowed,
		},
		{
			name:  "backend package",
			entry: Entry{Stack: StackBackend, Level: LevelError, Package: PackageHandler},
		},
		{
			name:  "shared package on frontend",
			entry: Entry{Stack: StackFrontend, Level: LevelDebug, Package: PackageMiddleware},
		},
		{
			name:  "shared package on backend",
			entry: Entry{Stack: StackBackend, Level: LevelFatal, Package: PackageConfig},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.entry.Validate()

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLevelFromSlog(t *testing.T) {
	assert.Equal(t, LevelDebug, LevelFromSlog(slog.LevelDebug))
	assert.Equal(t, LevelInfo, LevelFromSlog(slog.LevelInfo))
	assert.Equal(t, LevelWarn, LevelFromSlog(slog.LevelWarn))
	assert.Equal(t, LevelError, LevelFromSlog(slog.LevelError))
	assert.Equal(t, LevelFatal, LevelFromSlog(slog.LevelError+4))
}
