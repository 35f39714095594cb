// Package testutil provides test helpers for zapvault tests.
//
// The package is organized into focused files:
//   - assert.go: assertion helpers (MustNoErr, AssertEqualSlices, etc.)
//   - dbtest.go: backup database fixtures (NewBackupDB)
//   - fs_helpers.go: media folder fixtures (WriteFile, MediaDir)
package testutil
