package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/types"
)

func TestBlobMeta_EncodeDecodeRoundTrip(t *testing.T) {
	req := &types.BlobMetaRequest{
		Name: "myfile",
		Tags: []string{"x", "y"},
	}

	header, err := EncodeBlobMeta(req)
	require.NoError(t, err)

	decoded, err := DecodeBlobMeta(header)
	require.NoError(t, err)
	assert.Equal(t, req.Name, decoded.Name)
	assert.Equal(t, req.Tags, decoded.Tags)
}

func TestDecodeBlobMeta_MalformedBase64ReturnsBadRequest(t *testing.T) {
	_, err := DecodeBlobMeta("not-valid-base64!!!")
	assert.Equal(t, BadRequest, KindOf(err))
}

func TestDecodeBlobMeta_MalformedJSONReturnsBadRequest(t *testing.T) {
	_, err := DecodeBlobMeta("bm90IGpzb24=") // base64("not json")
	assert.Equal(t, BadRequest, KindOf(err))
}

func TestBlobSize_EncodeDecodeRoundTrip(t *testing.T) {
	header := EncodeBlobSize(1024)
	assert.Equal(t, "1024", header)

	size, err := DecodeBlobSize(header)
	require.NoError(t, err)
	assert.EqualValues(t, 1024, size)
}

func TestDecodeBlobSize_MalformedReturnsBadRequest(t *testing.T) {
	_, err := DecodeBlobSize("not-a-number")
	assert.Equal(t, BadRequest, KindOf(err))
}
