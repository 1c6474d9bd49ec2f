package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	c := &Cursor{StartDate: "2024-11-04T06:30:00Z", Position: 812}

	decoded, err := DecodeCursor(EncodeCursor(c))
	require.NoError(t, err)
	require.Equal(t, c, decoded)
}

func TestDecodeCursorEdgeCases(t *testing.T) {
	c, err := DecodeCursor("  ")
	require.NoError(t, err)
	require.Nil(t, c)
	require.Equal(t, "", EncodeCursor(nil))

	_, err = DecodeCursor("%%%")
	require.Error(t, err)

	_, err = DecodeCursor(EncodeCursor(&Cursor{Position: 1})[:2])
	require.Error(t, err)
}
