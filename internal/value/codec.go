// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package value

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ErrDataEncode is returned when encoding a Value carrying opaque data.
// Opaque payloads have no portable binary representation.
var ErrDataEncode = errors.New("data value cannot be encoded")

// ErrInvalidValue is returned when a decoded blob matches no alternative.
var ErrInvalidValue = errors.New("invalid value")

// EncodeMsgpack implements msgpack.CustomEncoder.
//
// The wire mapping is: pulse <-> nil, integer <-> signed int,
// scalar <-> float64, boolean <-> bool, string <-> str, vec2/3/4 <->
// array of 2/3/4 floats, tuple <-> mixed array, and tensor <->
// {type: "tensor", param: {type, dim, buf}}.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch v.kind {
	case KindPulse:
		return enc.EncodeNil()
	case KindInteger:
		return enc.EncodeInt(v.num)
	case KindScalar:
		return enc.EncodeFloat64(v.flt)
	case KindBoolean:
		return enc.EncodeBool(v.bit)
	case KindString:
		return enc.EncodeString(v.str)
	case KindVec2, KindVec3, KindVec4:
		n := 2
		switch v.kind {
		case KindVec3:
			n = 3
		case KindVec4:
			n = 4
		}
		if err := enc.EncodeArrayLen(n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := enc.EncodeFloat64(v.vec[i]); err != nil {
				return err
			}
		}
		return nil
	case KindTensor:
		return v.ten.encodeMsgpack(enc)
	case KindTuple:
		if err := enc.EncodeArrayLen(len(v.tup)); err != nil {
			return err
		}
		for i := range v.tup {
			if err := v.tup[i].EncodeMsgpack(enc); err != nil {
				return err
			}
		}
		return nil
	case KindData:
		return ErrDataEncode
	}
	return ErrInvalidValue
}

// DecodeMsgpack implements msgpack.CustomDecoder. The alternative is
// chosen by the most specific match: an array of 2, 3 or 4 floats
// becomes a vector, any other array a tuple.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	switch {
	case code == msgpcode.Nil:
		if err := dec.DecodeNil(); err != nil {
			return err
		}
		*v = Pulse()
		return nil

	case msgpcode.IsFixedNum(code),
		code == msgpcode.Int8, code == msgpcode.Int16,
		code == msgpcode.Int32, code == msgpcode.Int64,
		code == msgpcode.Uint8, code == msgpcode.Uint16,
		code == msgpcode.Uint32, code == msgpcode.Uint64:
		n, err := dec.DecodeInt64()
		if err != nil {
			return err
		}
		*v = Int(n)
		return nil

	case code == msgpcode.Float, code == msgpcode.Double:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return err
		}
		*v = Scalar(f)
		return nil

	case code == msgpcode.True, code == msgpcode.False:
		b, err := dec.DecodeBool()
		if err != nil {
			return err
		}
		*v = Bool(b)
		return nil

	case msgpcode.IsString(code):
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		*v = Str(s)
		return nil

	case msgpcode.IsFixedArray(code),
		code == msgpcode.Array16, code == msgpcode.Array32:
		return v.decodeArray(dec)

	case msgpcode.IsFixedMap(code),
		code == msgpcode.Map16, code == msgpcode.Map32:
		return v.decodeTensorBlob(dec)
	}
	return ErrInvalidValue
}

func (v *Value) decodeArray(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	elems := make([]Value, n)
	scalars := true
	for i := 0; i < n; i++ {
		if err := elems[i].DecodeMsgpack(dec); err != nil {
			return err
		}
		if !elems[i].IsScalar() {
			scalars = false
		}
	}
	if scalars && n >= 2 && n <= 4 {
		switch n {
		case 2:
			*v = Vec2(elems[0].flt, elems[1].flt)
		case 3:
			*v = Vec3(elems[0].flt, elems[1].flt, elems[2].flt)
		case 4:
			*v = Vec4(elems[0].flt, elems[1].flt, elems[2].flt, elems[3].flt)
		}
		return nil
	}
	*v = Tuple(elems...)
	return nil
}

func (v *Value) decodeTensorBlob(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return ErrInvalidValue
	}
	var ten *Tensor
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return err
		}
		switch key {
		case "type":
			name, err := dec.DecodeString()
			if err != nil {
				return err
			}
			if name != "tensor" {
				return fmt.Errorf("%w: unknown blob type %q", ErrInvalidValue, name)
			}
		case "param":
			ten, err = decodeTensor(dec)
			if err != nil {
				return err
			}
		default:
			return ErrInvalidValue
		}
	}
	if ten == nil {
		return ErrInvalidValue
	}
	*v = TensorVal(ten)
	return nil
}

func (t *Tensor) encodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("type"); err != nil {
		return err
	}
	if err := enc.EncodeString("tensor"); err != nil {
		return err
	}
	if err := enc.EncodeString("param"); err != nil {
		return err
	}
	if err := enc.EncodeMapLen(3); err != nil {
		return err
	}
	if err := enc.EncodeString("type"); err != nil {
		return err
	}
	if err := enc.EncodeString(t.elem.String()); err != nil {
		return err
	}
	if err := enc.EncodeString("dim"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(t.dim)); err != nil {
		return err
	}
	for _, d := range t.dim {
		if err := enc.EncodeUint(uint64(d)); err != nil {
			return err
		}
	}
	if err := enc.EncodeString("buf"); err != nil {
		return err
	}
	return enc.EncodeBytes(t.buf)
}

func decodeTensor(dec *msgpack.Decoder) (*Tensor, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	var (
		elem    ElemType
		hasElem bool
		dim     []uint32
		buf     []byte
	)
	for i := 0; i < n; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		switch key {
		case "type":
			name, err := dec.DecodeString()
			if err != nil {
				return nil, err
			}
			elem, err = ParseElemType(name)
			if err != nil {
				return nil, err
			}
			hasElem = true
		case "dim":
			l, err := dec.DecodeArrayLen()
			if err != nil {
				return nil, err
			}
			dim = make([]uint32, l)
			for j := 0; j < l; j++ {
				d, err := dec.DecodeUint32()
				if err != nil {
					return nil, err
				}
				dim[j] = d
			}
		case "buf":
			buf, err = dec.DecodeBytes()
			if err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: unknown tensor field %q", ErrInvalidValue, key)
		}
	}
	if !hasElem {
		return nil, fmt.Errorf("%w: tensor blob lacks element type", ErrInvalidValue)
	}
	return NewTensor(elem, dim, buf)
}
