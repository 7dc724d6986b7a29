package gameserver

import (
	"bytes"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/rogue/internal/game/event"
)

// eventStruct wraps e as {kind, at, data}, at in Unix milliseconds.
func eventStruct(e event.Event, at time.Time) (*structpb.Struct, error) {
	data, err := plainValue(e)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"kind": string(e.Kind()),
		"at":   float64(at.UnixMilli()),
		"data": data,
	})
}

// toStruct converts a tagged struct to a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	p, err := plainValue(v)
	if err != nil {
		return nil, err
	}
	m, ok := p.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%T does not encode to an object", v)
	}
	return structpb.NewStruct(m)
}

// plainValue round-trips v through MessagePack, reading msgpack tags first
// and json tags second, and reduces the result to the types structpb
// accepts.
func plainValue(v any) (any, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	var out any
	if err := msgpack.Unmarshal(buf.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}
	return normalize(out), nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case int8:
		return float64(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case uint8:
		return float64(x)
	case uint16:
		return float64(x)
	case uint32:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}
