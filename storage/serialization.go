package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode keeps sub-second timestamp precision.
var encMode = mustEncMode(cbor.EncOptions{Time: cbor.TimeRFC3339Nano})

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// MarshalDocument serializes a StoredDocument to bytes.
func MarshalDocument(doc *StoredDocument) ([]byte, error) {
	data, err := encMode.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalDocument deserializes a StoredDocument from bytes.
func UnmarshalDocument(data []byte) (*StoredDocument, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrSerializationFailed)
	}
	var doc StoredDocument
	if err := cbor.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &doc, nil
}
