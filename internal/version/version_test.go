package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	require.NotEmpty(t, GetVersion())
	require.NotEmpty(t, GetCommit())
	require.NotEmpty(t, GetDate())
}

func TestString(t *testing.T) {
	s := String()
	require.Contains(t, s, "version="+GetVersion())
	require.Contains(t, s, "commit="+GetCommit())
	require.Contains(t, s, "date="+GetDate())
}
