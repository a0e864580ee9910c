// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

// Package value implements the polymorphic value exchanged between node
// sockets: a tagged union over pulse, integer, scalar, boolean, fixed-size
// vectors, string, tensor, opaque data, and tuple.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/copystructure"
)

// Kind identifies the active alternative of a Value.
type Kind int

const (
	KindPulse Kind = iota
	KindInteger
	KindScalar
	KindBoolean
	KindVec2
	KindVec3
	KindVec4
	KindString
	KindTensor
	KindData
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindPulse:
		return "pulse"
	case KindInteger:
		return "integer"
	case KindScalar:
		return "scalar"
	case KindBoolean:
		return "boolean"
	case KindVec2:
		return "vec2"
	case KindVec3:
		return "vec3"
	case KindVec4:
		return "vec4"
	case KindString:
		return "string"
	case KindTensor:
		return "tensor"
	case KindData:
		return "data"
	case KindTuple:
		return "tuple"
	default:
		return "invalid"
	}
}

// Data is an opaque payload carried by a Value. Implementations must
// return a structurally independent copy from Clone.
type Data interface {
	TypeName() string
	Clone() Data
}

// RawData is a generic Data implementation wrapping an arbitrary Go
// value. Clone performs a deep copy of the payload.
type RawData struct {
	Name    string
	Payload interface{}
}

func (d *RawData) TypeName() string { return d.Name }

func (d *RawData) Clone() Data {
	payload, err := copystructure.Copy(d.Payload)
	if err != nil {
		// Payloads that defeat reflection-based copying (channels,
		// functions) are shared as-is.
		payload = d.Payload
	}
	return &RawData{Name: d.Name, Payload: payload}
}

var _ Data = (*RawData)(nil)

// Value is a tagged union. The zero Value is a pulse.
//
// Payload-bearing alternatives (string, tensor, data, tuple) may share
// their payload between copies of a Value; mutation must go through the
// Uniq accessors, which replace the payload with an owned deep copy.
type Value struct {
	kind Kind
	num  int64
	flt  float64
	bit  bool
	vec  [4]float64
	str  string
	ten  *Tensor
	dat  Data
	tup  []Value
}

// Constructors.

func Pulse() Value              { return Value{kind: KindPulse} }
func Int(n int64) Value         { return Value{kind: KindInteger, num: n} }
func Scalar(f float64) Value    { return Value{kind: KindScalar, flt: f} }
func Bool(b bool) Value         { return Value{kind: KindBoolean, bit: b} }
func Str(s string) Value        { return Value{kind: KindString, str: s} }
func NewData(d Data) Value      { return Value{kind: KindData, dat: d} }
func TensorVal(t *Tensor) Value { return Value{kind: KindTensor, ten: t} }

func Vec2(x, y float64) Value {
	return Value{kind: KindVec2, vec: [4]float64{x, y}}
}

func Vec3(x, y, z float64) Value {
	return Value{kind: KindVec3, vec: [4]float64{x, y, z}}
}

func Vec4(x, y, z, w float64) Value {
	return Value{kind: KindVec4, vec: [4]float64{x, y, z, w}}
}

func Tuple(vs ...Value) Value {
	return Value{kind: KindTuple, tup: vs}
}

// Kind returns the active alternative.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsPulse() bool   { return v.kind == KindPulse }
func (v Value) IsInteger() bool { return v.kind == KindInteger }
func (v Value) IsScalar() bool  { return v.kind == KindScalar }
func (v Value) IsBoolean() bool { return v.kind == KindBoolean }
func (v Value) IsString() bool  { return v.kind == KindString }
func (v Value) IsTensor() bool  { return v.kind == KindTensor }
func (v Value) IsData() bool    { return v.kind == KindData }
func (v Value) IsTuple() bool   { return v.kind == KindTuple }

func (v Value) IsVec() bool {
	return v.kind == KindVec2 || v.kind == KindVec3 || v.kind == KindVec4
}

// Int64 returns the value as a signed integer. Scalars are accepted and
// truncated toward zero.
func (v Value) Int64() (int64, error) {
	switch v.kind {
	case KindInteger:
		return v.num, nil
	case KindScalar:
		return int64(v.flt), nil
	default:
		return 0, fmt.Errorf("value is %s, not integer", v.kind)
	}
}

// Float64 returns the value as a float. Integers are accepted.
func (v Value) Float64() (float64, error) {
	switch v.kind {
	case KindInteger:
		return float64(v.num), nil
	case KindScalar:
		return v.flt, nil
	default:
		return 0, fmt.Errorf("value is %s, not scalar", v.kind)
	}
}

func (v Value) Boolean() (bool, error) {
	if v.kind != KindBoolean {
		return false, fmt.Errorf("value is %s, not boolean", v.kind)
	}
	return v.bit, nil
}

func (v Value) Vector2() ([2]float64, error) {
	if v.kind != KindVec2 {
		return [2]float64{}, fmt.Errorf("value is %s, not vec2", v.kind)
	}
	return [2]float64{v.vec[0], v.vec[1]}, nil
}

func (v Value) Vector3() ([3]float64, error) {
	if v.kind != KindVec3 {
		return [3]float64{}, fmt.Errorf("value is %s, not vec3", v.kind)
	}
	return [3]float64{v.vec[0], v.vec[1], v.vec[2]}, nil
}

func (v Value) Vector4() ([4]float64, error) {
	if v.kind != KindVec4 {
		return [4]float64{}, fmt.Errorf("value is %s, not vec4", v.kind)
	}
	return v.vec, nil
}

func (v Value) Text() (string, error) {
	if v.kind != KindString {
		return "", fmt.Errorf("value is %s, not string", v.kind)
	}
	return v.str, nil
}

func (v Value) Tensor() (*Tensor, error) {
	if v.kind != KindTensor {
		return nil, fmt.Errorf("value is %s, not tensor", v.kind)
	}
	return v.ten, nil
}

func (v Value) Data() (Data, error) {
	if v.kind != KindData {
		return nil, fmt.Errorf("value is %s, not data", v.kind)
	}
	return v.dat, nil
}

func (v Value) Tuple() ([]Value, error) {
	if v.kind != KindTuple {
		return nil, fmt.Errorf("value is %s, not tuple", v.kind)
	}
	return v.tup, nil
}

// UniqTensor returns a tensor payload owned exclusively by this Value,
// deep-copying the shared payload first. The returned tensor may be
// mutated freely.
func (v *Value) UniqTensor() (*Tensor, error) {
	if v.kind != KindTensor {
		return nil, fmt.Errorf("value is %s, not tensor", v.kind)
	}
	v.ten = v.ten.Clone()
	return v.ten, nil
}

// UniqData returns an exclusively owned copy of the opaque payload.
func (v *Value) UniqData() (Data, error) {
	if v.kind != KindData {
		return nil, fmt.Errorf("value is %s, not data", v.kind)
	}
	v.dat = v.dat.Clone()
	return v.dat, nil
}

// UniqTuple returns an exclusively owned element slice.
func (v *Value) UniqTuple() ([]Value, error) {
	if v.kind != KindTuple {
		return nil, fmt.Errorf("value is %s, not tuple", v.kind)
	}
	tup := make([]Value, len(v.tup))
	for i := range v.tup {
		tup[i] = v.tup[i].Clone()
	}
	v.tup = tup
	return v.tup, nil
}

// Clone returns a structurally independent copy. Delivery clones values
// before each receiver so receivers may mutate independently.
func (v Value) Clone() Value {
	out := v
	switch v.kind {
	case KindTensor:
		if v.ten != nil {
			out.ten = v.ten.Clone()
		}
	case KindData:
		if v.dat != nil {
			out.dat = v.dat.Clone()
		}
	case KindTuple:
		out.tup = make([]Value, len(v.tup))
		for i := range v.tup {
			out.tup[i] = v.tup[i].Clone()
		}
	}
	return out
}

// Equal reports deep equality. The active kinds must match; shared
// payloads compare by content, opaque data by payload identity unless
// both are RawData with comparable payloads.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindPulse:
		return true
	case KindInteger:
		return v.num == o.num
	case KindScalar:
		return v.flt == o.flt
	case KindBoolean:
		return v.bit == o.bit
	case KindVec2, KindVec3, KindVec4:
		return v.vec == o.vec
	case KindString:
		return v.str == o.str
	case KindTensor:
		return v.ten.Equal(o.ten)
	case KindData:
		return v.dat == o.dat
	case KindTuple:
		if len(v.tup) != len(o.tup) {
			return false
		}
		for i := range v.tup {
			if !v.tup[i].Equal(o.tup[i]) {
				return false
			}
		}
		return true
	}
	return false
}

const stringPreviewLen = 16

// String implements fmt.Stringer with a short human-readable form. Long
// strings are truncated; tensors are described by element type and shape.
func (v Value) String() string {
	switch v.kind {
	case KindPulse:
		return "pulse"
	case KindInteger:
		return strconv.FormatInt(v.num, 10)
	case KindScalar:
		return strconv.FormatFloat(v.flt, 'g', -1, 64)
	case KindBoolean:
		return strconv.FormatBool(v.bit)
	case KindVec2:
		return fmt.Sprintf("(%g, %g)", v.vec[0], v.vec[1])
	case KindVec3:
		return fmt.Sprintf("(%g, %g, %g)", v.vec[0], v.vec[1], v.vec[2])
	case KindVec4:
		return fmt.Sprintf("(%g, %g, %g, %g)", v.vec[0], v.vec[1], v.vec[2], v.vec[3])
	case KindString:
		if len(v.str) > stringPreviewLen {
			return strconv.Quote(v.str[:stringPreviewLen]) + "..."
		}
		return strconv.Quote(v.str)
	case KindTensor:
		return v.ten.String()
	case KindData:
		return "data<" + v.dat.TypeName() + ">"
	case KindTuple:
		parts := make([]string, len(v.tup))
		for i := range v.tup {
			parts[i] = v.tup[i].String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "invalid"
}
