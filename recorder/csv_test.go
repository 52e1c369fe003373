package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	iface "FaceStabilityServer/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatScore(t *testing.T) {
	cases := map[float32]string{
		0.3:       "0.3",
		0.9:       "0.9",
		1:         "1.0",
		0:         "0.0",
		0.5:       "0.5",
		0.5000001: "0.5000001",
		0.001:     "0.001",
		0.0009:    "9.0E-4",
		1e-05:     "1.0E-5",
		1.5e-07:   "1.5E-7",
		1e7:       "1.0E7",
		123.25:    "123.25",
	}
	for score, want := range cases {
		assert.Equal(t, want, FormatScore(score))
	}
}

func TestCSV_All(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	rec := NewCSV(path)

	t.Run("Test Append creates file", func(t *testing.T) {
		require.NoError(t, rec.Append(iface.Stable, 0.3))
		require.NoError(t, rec.Append(iface.Unstable, 0.9))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "Stable,0.3\nUnstable,0.9\n", string(raw))
	})

	t.Run("Test Append keeps existing lines", func(t *testing.T) {
		rec2 := NewCSV(path)
		require.NoError(t, rec2.Append(iface.Unstable, 1))
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, strings.Count(string(raw), "\n"))
		assert.True(t, strings.HasSuffix(string(raw), "Unstable,1.0\n"))
	})

	t.Run("Test ReadCSV", func(t *testing.T) {
		recs, err := ReadCSV(path)
		require.NoError(t, err)
		assert.Equal(t, []iface.Record{
			{Label: iface.Stable, Score: 0.3},
			{Label: iface.Unstable, Score: 0.9},
			{Label: iface.Unstable, Score: 1},
		}, recs)
	})
}

func TestCSVUnwritable(t *testing.T) {
	rec := NewCSV(filepath.Join(t.TempDir(), "missing", "results.csv"))
	err := rec.Append(iface.Stable, 0.1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadCSVMissing(t *testing.T) {
	recs, err := ReadCSV(filepath.Join(t.TempDir(), "none.csv"))
	assert.NoError(t, err)
	assert.Empty(t, recs)
}

func TestParseCSVBadScore(t *testing.T) {
	recs, err := parseCSV(strings.NewReader("Stable,0.1\nUnstable,abc\n"))
	assert.Error(t, err)
	assert.Len(t, recs, 1)
}
