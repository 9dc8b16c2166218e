package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// The content-subtype used for PiService messages; clients must request it
// with grpc.CallContentSubtype.
const CodecName = "json"

// Implements the gRPC encoding.Codec interface with JSON serialisation.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
