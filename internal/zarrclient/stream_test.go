package zarrclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyKey_Metadata(t *testing.T) {
	for _, key := range []string{".zmetadata", ".zgroup", ".zattrs", "tas/.zattrs", "tas/.zarray"} {
		ct, err := ClassifyKey(key)
		require.NoError(t, err, key)
		assert.Equal(t, "application/json", ct, key)
	}
}

func TestClassifyKey_ChunkIndices(t *testing.T) {
	for _, key := range []string{"tas/0", "tas/0.0.0", "group/tas/12.3"} {
		ct, err := ClassifyKey(key)
		require.NoError(t, err, key)
		assert.Equal(t, "application/octet-stream", ct, key)
	}
}

func TestClassifyKey_Rejected(t *testing.T) {
	for _, key := range []string{
		"tas/.zmetadata",
		"tas/.zgroup",
		".zarray",
		"0.0.0",
		"tas/not-a-chunk",
		"tas//0.0.0",
		"tas/0.0.0/",
	} {
		_, err := ClassifyKey(key)
		assert.Error(t, err, key)
	}
}
