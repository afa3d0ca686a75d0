package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nzymedefense/nzyme/internal/bandits"
	"github.com/nzymedefense/nzyme/internal/bandits/identifiers"
)

var testEpoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "bandits.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testBandit(t *testing.T, name string) *bandits.Bandit {
	t.Helper()
	ssids, err := identifiers.NewSSIDs([]string{"home", "WTF"})
	require.NoError(t, err)
	signal, err := identifiers.NewSignalStrength(-30, -70)
	require.NoError(t, err)
	fp, err := identifiers.NewFingerprint("ab12cd")
	require.NoError(t, err)

	b, err := bandits.NewBandit(name, "a test bandit", testEpoch, ssids, signal, fp)
	require.NoError(t, err)
	return b
}
