package tapedeckv1

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// CodecName is the Connect codec name; requests use "application/json".
const CodecName = "json"

// Codec marshals messages as JSON.
// It replaces Connect's built-in JSON codec, which only handles protobuf messages.
type Codec struct{}

// Name implements connect.Codec.
func (Codec) Name() string {
	return CodecName
}

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "marshal %T", msg)
	}
	return data, nil
}

// Unmarshal implements connect.Codec. An empty body leaves msg at its zero value.
func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrapf(err, "unmarshal %T", msg)
	}
	return nil
}
