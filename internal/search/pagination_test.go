package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBatchSize_Streaming(t *testing.T) {
	assert.NoError(t, ValidateBatchSize(10000, true))
	assert.Error(t, ValidateBatchSize(10001, true))
}

func TestValidateBatchSize_NonStreaming(t *testing.T) {
	assert.NoError(t, ValidateBatchSize(1000, false))
	assert.Error(t, ValidateBatchSize(1001, false))
}

func TestValidateBatchSize_NonPositiveRejected(t *testing.T) {
	assert.Error(t, ValidateBatchSize(0, false))
	assert.Error(t, ValidateBatchSize(-1, true))
}

func TestStacCursor_RoundTrip(t *testing.T) {
	c := StacCursor{Direction: StacNext, Collection: "cmip6", ItemID: "item-42"}
	token := EncodeStacCursor(c)

	decoded, err := DecodeStacCursor(token)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestStacCursor_RejectsMalformedToken(t *testing.T) {
	_, err := DecodeStacCursor("not-valid-base64!!")
	assert.Error(t, err)
}

func TestStacCursor_RejectsUnknownDirection(t *testing.T) {
	token := EncodeStacCursor(StacCursor{Direction: "sideways", Collection: "c", ItemID: "i"})
	_, err := DecodeStacCursor(token)
	assert.Error(t, err)
}

func TestValidateStacLimit(t *testing.T) {
	assert.NoError(t, ValidateStacLimit(1))
	assert.NoError(t, ValidateStacLimit(1000))
	assert.Error(t, ValidateStacLimit(0))
	assert.Error(t, ValidateStacLimit(1001))
}
