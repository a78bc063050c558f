package mqtt

import (
	"bytes"
	"fmt"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/fieldlink/pkg/l0/field"
)

// Format is the encoding of values in message payloads.
type Format string

// Formats.
const (
	FormatJSON  Format = "json"
	FormatProto Format = "proto"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSON, FormatProto:
		return f, nil
	}
	return "", fmt.Errorf("unknown payload format %q", s)
}

// EncodeValue encodes a field value as a google.protobuf.Value: a number
// for a single element, or a list of numbers.
func (f Format) EncodeValue(fd *field.Field, v field.Value) ([]byte, error) {
	nums := v.Numbers()
	var pv *structpb.Value
	if fd.IsList() {
		list := &structpb.ListValue{Values: make([]*structpb.Value, len(nums))}
		for i, n := range nums {
			list.Values[i] = numberValue(n)
		}
		pv = &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: list}}
	} else if len(nums) == 1 {
		pv = numberValue(nums[0])
	} else {
		return nil, fmt.Errorf("field %q: %d elements for a scalar", fd.Name(), len(nums))
	}
	return f.marshal(pv)
}

// DecodeValue decodes a payload into a value of the field. Numbers, lists of
// numbers, booleans, and strings for byte fields are accepted.
func (f Format) DecodeValue(fd *field.Field, payload []byte) (field.Value, error) {
	pv, err := f.unmarshal(payload)
	if err != nil {
		return field.Value{}, fmt.Errorf("field %q: %w", fd.Name(), err)
	}
	var nums []float64
	switch kind := pv.Kind.(type) {
	case *structpb.Value_StringValue:
		if fd.Type() != field.TypeByte {
			return field.Value{}, fmt.Errorf("field %q: string for %s", fd.Name(), fd.Type())
		}
		return field.Chars(kind.StringValue), nil
	case *structpb.Value_ListValue:
		for _, e := range kind.ListValue.GetValues() {
			n, err := number(e)
			if err != nil {
				return field.Value{}, fmt.Errorf("field %q: %w", fd.Name(), err)
			}
			nums = append(nums, n)
		}
	default:
		n, err := number(pv)
		if err != nil {
			return field.Value{}, fmt.Errorf("field %q: %w", fd.Name(), err)
		}
		nums = []float64{n}
	}
	return field.FromNumbers(fd.Type(), nums)
}

// Describe renders a payload as JSON regardless of the format.
func (f Format) Describe(payload []byte) (string, error) {
	pv, err := f.unmarshal(payload)
	if err != nil {
		return "", err
	}
	return (&jsonpb.Marshaler{}).MarshalToString(pv)
}

func (f Format) unmarshal(payload []byte) (*structpb.Value, error) {
	var pv structpb.Value
	var err error
	if f == FormatProto {
		err = proto.Unmarshal(payload, &pv)
	} else {
		err = jsonpb.Unmarshal(bytes.NewReader(payload), &pv)
	}
	if err != nil {
		return nil, err
	}
	return &pv, nil
}

func (f Format) marshal(pv *structpb.Value) ([]byte, error) {
	if f == FormatProto {
		return proto.Marshal(pv)
	}
	s, err := (&jsonpb.Marshaler{}).MarshalToString(pv)
	return []byte(s), err
}

func numberValue(n float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: n}}
}

func number(v *structpb.Value) (float64, error) {
	switch kind := v.Kind.(type) {
	case *structpb.Value_NumberValue:
		return kind.NumberValue, nil
	case *structpb.Value_BoolValue:
		if kind.BoolValue {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported value %v", v)
}
