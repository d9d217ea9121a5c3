package infra

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nullpane/reflexd/internal/domain"
)

func testSummary(id string, start time.Time) domain.SessionSummary {
	return domain.SessionSummary{
		ID:            id,
		StartedAt:     start,
		EndedAt:       start.Add(2 * time.Minute),
		Frames:        7200,
		Hits:          42,
		AvgFPS:        59.7,
		FingerprintID: "abc123def456",
		Tier:          domain.TierKernelDevice,
	}
}

// TestSessionJournal_RecordAndRecent verifies the roundtrip and the
// newest-first ordering.
func TestSessionJournal_RecordAndRecent(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	j, err := NewSessionJournal(t.TempDir(), key)
	require.NoError(t, err)
	defer j.Close()

	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		s := testSummary(fmt.Sprintf("session-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, j.Record(s))
	}

	got, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "session-2", got[0].ID, "newest session first")
	assert.Equal(t, "session-0", got[2].ID)

	want := testSummary("session-1", base.Add(time.Minute))
	assert.Equal(t, want, got[1], "summaries must roundtrip unchanged")
}

// TestSessionJournal_Limit verifies the result cap.
func TestSessionJournal_Limit(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	j, err := NewSessionJournal(t.TempDir(), key)
	require.NoError(t, err)
	defer j.Close()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(testSummary(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Second))))
	}

	got, err := j.Recent(2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	empty, err := NewSessionJournal(t.TempDir(), key)
	require.NoError(t, err)
	defer empty.Close()
	none, err := empty.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// TestSessionJournal_WrongKeyFails verifies the encryption is real: a
// different key cannot open an existing journal.
func TestSessionJournal_WrongKeyFails(t *testing.T) {
	dir := t.TempDir()

	key, err := GenerateKey()
	require.NoError(t, err)
	j, err := NewSessionJournal(dir, key)
	require.NoError(t, err)
	require.NoError(t, j.Record(testSummary("secret", time.Now())))
	require.NoError(t, j.Close())

	other, err := GenerateKey()
	require.NoError(t, err)
	if _, openErr := NewSessionJournal(dir, other); openErr == nil {
		t.Fatal("journal opened with the wrong key")
	}
}
