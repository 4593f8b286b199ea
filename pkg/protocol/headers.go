package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/menmos/menmos/pkg/types"
)

// HeaderBlobMeta and HeaderBlobSize are the two headers a storage node
// or directory client attaches to a blob upload, per spec.md §6.
const (
	HeaderBlobMeta = "x-blob-meta"
	HeaderBlobSize = "x-blob-size"
)

// EncodeBlobMeta base64-encodes the JSON form of req for the
// x-blob-meta header.
func EncodeBlobMeta(req *types.BlobMetaRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("protocol: encode blob meta: %w", err)
	}
	return base64.StdEncoding.EncodeToString(body), nil
}

// DecodeBlobMeta reverses EncodeBlobMeta, returning a BadRequest-kind
// Error on malformed input.
func DecodeBlobMeta(header string) (*types.BlobMetaRequest, error) {
	body, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, NewError(BadRequest, "malformed x-blob-meta header", err)
	}

	var req types.BlobMetaRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, NewError(BadRequest, "malformed x-blob-meta payload", err)
	}
	return &req, nil
}

// EncodeBlobSize renders size as the decimal x-blob-size header value.
func EncodeBlobSize(size uint64) string {
	return strconv.FormatUint(size, 10)
}

// DecodeBlobSize parses the x-blob-size header, returning a
// BadRequest-kind Error on malformed input.
func DecodeBlobSize(header string) (uint64, error) {
	size, err := strconv.ParseUint(header, 10, 64)
	if err != nil {
		return 0, NewError(BadRequest, "malformed x-blob-size header", err)
	}
	return size, nil
}
