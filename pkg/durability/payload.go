package durability

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/arborgraph/arbor/pkg/value"
)

// NewPropertySetPayload msgpack-encodes val for inclusion in a
// RecSetProperty record.
func NewPropertySetPayload(elementGID uint64, isEdge bool, key string, val value.Value) (PropertyPayload, error) {
	encoded, err := msgpack.Marshal(val)
	if err != nil {
		return PropertyPayload{}, fmt.Errorf("durability: encode property value: %w", err)
	}
	return PropertyPayload{ElementGID: elementGID, IsEdge: isEdge, Key: key, Value: encoded}, nil
}

// DecodePropertyValue decodes the Value field of a PropertyPayload back
// into a value.Value.
func DecodePropertyValue(p PropertyPayload) (value.Value, error) {
	var v value.Value
	if len(p.Value) == 0 {
		return value.Null(), nil
	}
	if err := msgpack.Unmarshal(p.Value, &v); err != nil {
		return value.Value{}, fmt.Errorf("durability: decode property value: %w", err)
	}
	return v, nil
}
