package field

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueType(t *testing.T) {
	require.Equal(t, 1, TypeByte.Size())
	require.Equal(t, 4, TypeInt.Size())
	require.Equal(t, 4, TypeFloat.Size())
	require.Equal(t, 0, ValueType(0).Size())
	require.False(t, ValueType(9).IsValid())

	for in, expected := range map[string]ValueType{
		"byte":    TypeByte,
		"bool":    TypeByte,
		"char":    TypeByte,
		"int":     TypeInt,
		"integer": TypeInt,
		"float":   TypeFloat,
		"double":  TypeFloat,
	} {
		typ, err := ParseValueType(in)
		require.NoError(t, err, in)
		require.Equal(t, expected, typ, in)
	}
	_, err := ParseValueType("string")
	require.True(t, errors.Is(err, ErrInvalidField))
}

func TestValueEncode(t *testing.T) {
	testCases := []struct {
		name    string
		value   Value
		encoded []byte
	}{
		{"byte", Bytes(0x7f), []byte{0x7f}},
		{"bools", Bools(true, false, true), []byte{1, 0, 1}},
		{"chars", Chars("ok"), []byte{'o', 'k'}},
		{"int", Ints(300), []byte{0, 0, 1, 0x2c}},
		{"negative int", Ints(-2), []byte{0xff, 0xff, 0xff, 0xfe}},
		{"float", Floats(1.5), []byte{0x3f, 0xc0, 0, 0}},
		{"floats", Floats(1, -2, 0.5), []byte{0x3f, 0x80, 0, 0, 0xc0, 0, 0, 0, 0x3f, 0, 0, 0}},
		{"double", Doubles(1.5), []byte{0x3f, 0xc0, 0, 0}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.encoded, tc.value.Encode())
			decoded, err := Decode(tc.value.Type(), tc.value.Len(), tc.encoded)
			require.NoError(t, err)
			require.Equal(t, tc.value, decoded)
		})
	}
}

func TestValueDecodeSizeMismatch(t *testing.T) {
	_, err := Decode(TypeInt, 1, []byte{0, 1})
	require.True(t, errors.Is(err, ErrPayloadSize))
	var sizeErr *PayloadSizeError
	require.True(t, errors.As(err, &sizeErr))
	require.Equal(t, 4, sizeErr.Expected)
	require.Equal(t, 2, sizeErr.Actual)

	_, err = Decode(ValueType(0), 1, []byte{0})
	require.True(t, errors.Is(err, ErrInvalidField))
}

func TestValueExtract(t *testing.T) {
	v := Ints(-7)
	n, err := v.Int()
	require.NoError(t, err)
	require.Equal(t, int32(-7), n)
	ns, err := v.Ints()
	require.NoError(t, err)
	require.Equal(t, []int32{-7}, ns)
	_, err = v.Float()
	require.True(t, errors.Is(err, ErrTypeMismatch))
	require.Equal(t, []float64{-7}, v.Numbers())

	v = Ints(1, 2)
	_, err = v.Int()
	require.True(t, errors.Is(err, ErrTypeMismatch))

	v = Bytes(0, 2)
	bs, err := v.Bools()
	require.NoError(t, err)
	require.Equal(t, []bool{false, true}, bs)
	s, err := Chars("hi").Chars()
	require.NoError(t, err)
	require.Equal(t, "hi", s)
	c, err := Bytes('x').Char()
	require.NoError(t, err)
	require.Equal(t, 'x', c)

	d, err := Floats(0.25).Double()
	require.NoError(t, err)
	require.Equal(t, 0.25, d)
	f, err := Floats(float32(math.Inf(1))).Float()
	require.NoError(t, err)
	require.True(t, math.IsInf(float64(f), 1))
}

func TestValueFromNumbers(t *testing.T) {
	v, err := FromNumbers(TypeByte, []float64{1, 255})
	require.NoError(t, err)
	require.Equal(t, Bytes(1, 255), v)
	v, err = FromNumbers(TypeInt, []float64{-300})
	require.NoError(t, err)
	require.Equal(t, Ints(-300), v)
	v, err = FromNumbers(TypeFloat, []float64{2.5})
	require.NoError(t, err)
	require.Equal(t, Floats(2.5), v)

	for _, tc := range []struct {
		typ ValueType
		n   float64
	}{
		{TypeByte, 256},
		{TypeByte, -1},
		{TypeByte, 1.5},
		{TypeInt, math.MaxInt32 + 1},
		{TypeInt, 0.1},
	} {
		_, err := FromNumbers(tc.typ, []float64{tc.n})
		require.True(t, errors.Is(err, ErrValueRange), "%s %v", tc.typ, tc.n)
	}
}

func TestValueString(t *testing.T) {
	require.Equal(t, "300", Ints(300).String())
	require.Equal(t, "[1 2]", Bytes(1, 2).String())
	require.Equal(t, "1.5", Floats(1.5).String())
}
