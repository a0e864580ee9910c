// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package value

import (
	"bytes"
	"fmt"
	"math"
	"strings"
)

// ElemType enumerates tensor element types.
type ElemType uint8

const (
	I8 ElemType = iota
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F16
	F32
	F64
)

var elemTypeNames = map[ElemType]string{
	I8: "i8", I16: "i16", I32: "i32", I64: "i64",
	U8: "u8", U16: "u16", U32: "u32", U64: "u64",
	F16: "f16", F32: "f32", F64: "f64",
}

func (t ElemType) String() string {
	if s, ok := elemTypeNames[t]; ok {
		return s
	}
	return "invalid"
}

// Bytes returns the width of one element in bytes.
func (t ElemType) Bytes() int {
	switch t {
	case I8, U8:
		return 1
	case I16, U16, F16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	}
	return 0
}

// ParseElemType maps a type name back to its ElemType.
func ParseElemType(s string) (ElemType, error) {
	for t, name := range elemTypeNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tensor element type: %s", s)
}

// Tensor is a contiguous row-major byte buffer with an element type and
// a dimension vector. All invariants are checked at construction and at
// decode, never after.
type Tensor struct {
	elem ElemType
	dim  []uint32
	buf  []byte
}

// NewTensor validates the shape against the buffer and wraps them.
// The dimension vector must be non-empty with no zero entries, its
// product must fit in a machine word, and the buffer must hold exactly
// product(dim) * elem.Bytes() bytes.
func NewTensor(elem ElemType, dim []uint32, buf []byte) (*Tensor, error) {
	if elem.Bytes() == 0 {
		return nil, fmt.Errorf("unknown tensor element type: %d", elem)
	}
	if len(dim) == 0 {
		return nil, fmt.Errorf("tensor dimension vector is empty")
	}
	n := uint64(1)
	for _, d := range dim {
		if d == 0 {
			return nil, fmt.Errorf("tensor dimension contains zero")
		}
		if n > math.MaxUint64/uint64(d) {
			return nil, fmt.Errorf("tensor element count overflow")
		}
		n *= uint64(d)
	}
	if n > math.MaxInt64/uint64(elem.Bytes()) {
		return nil, fmt.Errorf("tensor byte size overflow")
	}
	if uint64(len(buf)) != n*uint64(elem.Bytes()) {
		return nil, fmt.Errorf(
			"tensor buffer is %d bytes, want %d", len(buf), n*uint64(elem.Bytes()))
	}
	return &Tensor{elem: elem, dim: dim, buf: buf}, nil
}

func (t *Tensor) Elem() ElemType { return t.elem }
func (t *Tensor) Dim() []uint32  { return t.dim }
func (t *Tensor) Buf() []byte    { return t.buf }

// ElemCount returns product(dim).
func (t *Tensor) ElemCount() uint64 {
	n := uint64(1)
	for _, d := range t.dim {
		n *= uint64(d)
	}
	return n
}

// Clone returns an independent deep copy.
func (t *Tensor) Clone() *Tensor {
	dim := make([]uint32, len(t.dim))
	copy(dim, t.dim)
	buf := make([]byte, len(t.buf))
	copy(buf, t.buf)
	return &Tensor{elem: t.elem, dim: dim, buf: buf}
}

// Equal reports deep equality of type, shape and contents.
func (t *Tensor) Equal(o *Tensor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.elem != o.elem || len(t.dim) != len(o.dim) {
		return false
	}
	for i := range t.dim {
		if t.dim[i] != o.dim[i] {
			return false
		}
	}
	return bytes.Equal(t.buf, o.buf)
}

// String describes the tensor by element type and shape, not contents.
func (t *Tensor) String() string {
	dims := make([]string, len(t.dim))
	for i, d := range t.dim {
		dims[i] = fmt.Sprint(d)
	}
	return fmt.Sprintf("tensor<%s>[%s]", t.elem, strings.Join(dims, " "))
}
