package nutcache

import (
	"encoding/json"
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Codec converts cached values to and from their stored form. Encoded output
// is embedded verbatim in the JSON envelope, so it must be valid JSON text.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec encodes values with encoding/json. It is the default codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// ProtoJSONCodec encodes protobuf messages with protojson. Values must
// implement proto.Message; for GetItem and Get the type parameter is
// typically a message pointer such as *structpb.Struct.
type ProtoJSONCodec struct {
	MarshalOptions   protojson.MarshalOptions
	UnmarshalOptions protojson.UnmarshalOptions
}

func (c ProtoJSONCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("nutcache: protojson codec: %T is not a proto.Message", v)
	}
	return c.MarshalOptions.Marshal(m)
}

// Unmarshal decodes into v, which must be a pointer to a message pointer
// (e.g. **structpb.Struct). A nil message is allocated.
func (c ProtoJSONCodec) Unmarshal(data []byte, v any) error {
	m, err := protoTarget(v)
	if err != nil {
		return err
	}
	return c.UnmarshalOptions.Unmarshal(data, m)
}

func protoTarget(v any) (proto.Message, error) {
	if m, ok := v.(proto.Message); ok {
		return m, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Pointer {
		return nil, fmt.Errorf("nutcache: protojson codec: cannot decode into %T", v)
	}
	elem := rv.Elem()
	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}
	m, ok := elem.Interface().(proto.Message)
	if !ok {
		return nil, fmt.Errorf("nutcache: protojson codec: %s is not a proto.Message", elem.Type())
	}
	return m, nil
}
