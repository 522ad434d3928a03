package bytes

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFmtMem(t *testing.T) {
	require.Equal(t, "512B", FmtMem(512))
	require.Equal(t, "1KB 0B", FmtMem(1024))
	require.Equal(t, "1MB 512KB", FmtMem(1024*1024+512*1024))
	require.Equal(t, "2GB 0MB", FmtMem(2*1024*1024*1024))
	require.Equal(t, "1TB 1GB", FmtMem(1024*1024*1024*1024+1024*1024*1024))
}
