package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"ytpipeline/youtube"
)

// Checksum returns the hex SHA-256 of meta's canonical JSON form: object
// keys sorted at every depth, array order kept, numbers as written.
func Checksum(meta *youtube.VideoMetadata) (string, error) {
	canonical, err := canonicalJSON(meta)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON round-trips v through a generic map so encoding/json emits
// map keys in sorted order.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return json.Marshal(generic)
}

// Validate reports whether r is structurally sound and its original
// metadata still matches the stored checksum.
func Validate(r *MetadataRecord) bool {
	if r == nil || r.OriginalMetadata == nil || r.OriginalMetadata.Checksum == "" {
		return false
	}
	if r.VideoID == "" || r.VideoID != r.OriginalMetadata.VideoID {
		return false
	}
	sum, err := Checksum(&r.OriginalMetadata.VideoMetadata)
	if err != nil {
		return false
	}
	return sum == r.OriginalMetadata.Checksum
}
