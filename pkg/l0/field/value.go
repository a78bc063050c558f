package field

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType is the element type of a field.
type ValueType byte

// Value types.
const (
	TypeByte ValueType = iota + 1
	TypeInt
	TypeFloat
)

// IsValid checks if it's a known type.
func (t ValueType) IsValid() bool {
	return t >= TypeByte && t <= TypeFloat
}

// Size returns the encoded size of one element.
func (t ValueType) Size() int {
	switch t {
	case TypeByte:
		return 1
	case TypeInt, TypeFloat:
		return 4
	}
	return 0
}

// String implements fmt.Stringer.
func (t ValueType) String() string {
	switch t {
	case TypeByte:
		return "byte"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	}
	return fmt.Sprintf("ValueType(%d)", byte(t))
}

// ParseValueType parses a type name. Interpretations of the same wire
// type are accepted as aliases: bool and char for byte, double for float.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(s) {
	case "byte", "bool", "boolean", "char":
		return TypeByte, nil
	case "int", "integer", "int32":
		return TypeInt, nil
	case "float", "float32", "double":
		return TypeFloat, nil
	}
	return 0, fmt.Errorf("%w: unknown type %q", ErrInvalidField, s)
}

// Value is one or more elements of a single ValueType.
// Elements are kept as raw 32-bit patterns.
type Value struct {
	typ   ValueType
	elems []uint32
}

// Bytes creates a byte value.
func Bytes(b ...byte) Value {
	v := Value{typ: TypeByte, elems: make([]uint32, len(b))}
	for i, e := range b {
		v.elems[i] = uint32(e)
	}
	return v
}

// Bools creates a byte value from booleans.
func Bools(b ...bool) Value {
	v := Value{typ: TypeByte, elems: make([]uint32, len(b))}
	for i, e := range b {
		if e {
			v.elems[i] = 1
		}
	}
	return v
}

// Chars creates a byte value from the bytes of s.
func Chars(s string) Value {
	return Bytes([]byte(s)...)
}

// Ints creates an int value.
func Ints(n ...int32) Value {
	v := Value{typ: TypeInt, elems: make([]uint32, len(n))}
	for i, e := range n {
		v.elems[i] = uint32(e)
	}
	return v
}

// Floats creates a float value.
func Floats(f ...float32) Value {
	v := Value{typ: TypeFloat, elems: make([]uint32, len(f))}
	for i, e := range f {
		v.elems[i] = math.Float32bits(e)
	}
	return v
}

// Doubles creates a float value, truncating to single precision.
func Doubles(d ...float64) Value {
	v := Value{typ: TypeFloat, elems: make([]uint32, len(d))}
	for i, e := range d {
		v.elems[i] = math.Float32bits(float32(e))
	}
	return v
}

// FromNumbers creates a value of type typ from numbers, checking that each
// number is representable.
func FromNumbers(typ ValueType, nums []float64) (Value, error) {
	v := Value{typ: typ, elems: make([]uint32, len(nums))}
	for i, n := range nums {
		switch typ {
		case TypeByte:
			if n != math.Trunc(n) || n < 0 || n > math.MaxUint8 {
				return Value{}, fmt.Errorf("%w: %v is not a byte", ErrValueRange, n)
			}
			v.elems[i] = uint32(n)
		case TypeInt:
			if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
				return Value{}, fmt.Errorf("%w: %v is not an int32", ErrValueRange, n)
			}
			v.elems[i] = uint32(int32(n))
		case TypeFloat:
			v.elems[i] = math.Float32bits(float32(n))
		default:
			return Value{}, fmt.Errorf("%w: %s", ErrInvalidField, typ)
		}
	}
	return v, nil
}

// Decode decodes a payload of quantity elements of typ.
func Decode(typ ValueType, quantity int, payload []byte) (Value, error) {
	size := typ.Size()
	if size == 0 {
		return Value{}, fmt.Errorf("%w: %s", ErrInvalidField, typ)
	}
	if len(payload) != size*quantity {
		return Value{}, &PayloadSizeError{Expected: size * quantity, Actual: len(payload)}
	}
	v := Value{typ: typ, elems: make([]uint32, quantity)}
	for i := range v.elems {
		if size == 1 {
			v.elems[i] = uint32(payload[i])
		} else {
			v.elems[i] = binary.BigEndian.Uint32(payload[i*size:])
		}
	}
	return v, nil
}

// Encode encodes the value big-endian.
func (v Value) Encode() []byte {
	size := v.typ.Size()
	b := make([]byte, size*len(v.elems))
	for i, e := range v.elems {
		if size == 1 {
			b[i] = byte(e)
		} else {
			binary.BigEndian.PutUint32(b[i*size:], e)
		}
	}
	return b
}

// Type returns the element type.
func (v Value) Type() ValueType {
	return v.typ
}

// Len returns the number of elements.
func (v Value) Len() int {
	return len(v.elems)
}

func (v Value) check(want ValueType, list bool) error {
	if v.typ != want || (!list && len(v.elems) != 1) {
		return &TypeMismatchError{Want: want, WantList: list, Have: v.typ, Quantity: len(v.elems)}
	}
	return nil
}

// Byte extracts a single byte.
func (v Value) Byte() (byte, error) {
	if err := v.check(TypeByte, false); err != nil {
		return 0, err
	}
	return byte(v.elems[0]), nil
}

// Bytes extracts all bytes.
func (v Value) Bytes() ([]byte, error) {
	if err := v.check(TypeByte, true); err != nil {
		return nil, err
	}
	b := make([]byte, len(v.elems))
	for i, e := range v.elems {
		b[i] = byte(e)
	}
	return b, nil
}

// Bool extracts a single byte as boolean, non-zero is true.
func (v Value) Bool() (bool, error) {
	b, err := v.Byte()
	return b != 0, err
}

// Bools extracts all bytes as booleans.
func (v Value) Bools() ([]bool, error) {
	b, err := v.Bytes()
	if err != nil {
		return nil, err
	}
	res := make([]bool, len(b))
	for i, e := range b {
		res[i] = e != 0
	}
	return res, nil
}

// Char extracts a single byte as a character code.
func (v Value) Char() (rune, error) {
	b, err := v.Byte()
	return rune(b), err
}

// Chars extracts all bytes as a string.
func (v Value) Chars() (string, error) {
	b, err := v.Bytes()
	return string(b), err
}

// Int extracts a single int.
func (v Value) Int() (int32, error) {
	if err := v.check(TypeInt, false); err != nil {
		return 0, err
	}
	return int32(v.elems[0]), nil
}

// Ints extracts all ints.
func (v Value) Ints() ([]int32, error) {
	if err := v.check(TypeInt, true); err != nil {
		return nil, err
	}
	res := make([]int32, len(v.elems))
	for i, e := range v.elems {
		res[i] = int32(e)
	}
	return res, nil
}

// Float extracts a single float.
func (v Value) Float() (float32, error) {
	if err := v.check(TypeFloat, false); err != nil {
		return 0, err
	}
	return math.Float32frombits(v.elems[0]), nil
}

// Floats extracts all floats.
func (v Value) Floats() ([]float32, error) {
	if err := v.check(TypeFloat, true); err != nil {
		return nil, err
	}
	res := make([]float32, len(v.elems))
	for i, e := range v.elems {
		res[i] = math.Float32frombits(e)
	}
	return res, nil
}

// Double extracts a single float widened to float64.
func (v Value) Double() (float64, error) {
	f, err := v.Float()
	return float64(f), err
}

// Doubles extracts all floats widened to float64.
func (v Value) Doubles() ([]float64, error) {
	f, err := v.Floats()
	if err != nil {
		return nil, err
	}
	res := make([]float64, len(f))
	for i, e := range f {
		res[i] = float64(e)
	}
	return res, nil
}

// Numbers converts all elements to float64 regardless of type.
func (v Value) Numbers() []float64 {
	res := make([]float64, len(v.elems))
	for i, e := range v.elems {
		switch v.typ {
		case TypeInt:
			res[i] = float64(int32(e))
		case TypeFloat:
			res[i] = float64(math.Float32frombits(e))
		default:
			res[i] = float64(e)
		}
	}
	return res
}

// String implements fmt.Stringer.
func (v Value) String() string {
	strs := make([]string, len(v.elems))
	for i, e := range v.elems {
		switch v.typ {
		case TypeInt:
			strs[i] = strconv.Itoa(int(int32(e)))
		case TypeFloat:
			strs[i] = strconv.FormatFloat(float64(math.Float32frombits(e)), 'g', -1, 32)
		default:
			strs[i] = strconv.Itoa(int(e))
		}
	}
	if len(strs) == 1 {
		return strs[0]
	}
	return "[" + strings.Join(strs, " ") + "]"
}
