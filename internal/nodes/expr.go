// Copyright (c) The Kingtaker Authors
// SPDX-License-Identifier: MPL-2.0

package nodes

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zclconf/go-cty/cty"

	"github.com/falsycat/kingtaker-sub000/internal/file"
	"github.com/falsycat/kingtaker-sub000/internal/node"
	"github.com/falsycat/kingtaker-sub000/internal/value"
)

// ExprType is the registration of the expression node.
var ExprType *file.TypeInfo

func init() {
	ExprType = file.Register(&file.TypeInfo{
		Name: "Expr",
		Desc: "evaluates an expression over its inputs",
		Tags: []string{"Node"},
		Deserialize: func(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
			return deserializeExpr(dec, env)
		},
		Factory: func(env *file.Env) file.File {
			n, _ := NewExpr(env, "0", nil)
			return n
		},
	})
}

// Expr evaluates one HCL expression each time clk pulses. Every named
// variable is a cached input socket; evaluation reads the last value
// delivered to each and sends the result on "out". A missing input or
// an evaluation failure pulses "errr".
type Expr struct {
	node.Base
	env  *file.Env
	src  string
	expr hcl.Expression
	vars []string
}

var _ node.Node = (*Expr)(nil)

// NewExpr parses src and builds the node with one cached input per
// variable name.
func NewExpr(env *file.Env, src string, vars []string) (*Expr, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "expr", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, errors.New(diags.Error())
	}
	n := &Expr{
		Base: node.NewNodeBase(ExprType, node.FlagMenu),
		env:  env,
		src:  src,
		expr: expr,
		vars: vars,
	}
	in := make([]*node.InSock, 0, len(vars)+1)
	in = append(in, node.NewInSock(n, "clk", func(ctx *node.Context, _ value.Value) error {
		return n.eval(ctx)
	}))
	for _, name := range vars {
		in = append(in, node.NewCachedInSock(n, name, nil))
	}
	out := node.NewOutSock(n, "out", env.Queues.Sub)
	errr := node.NewOutSock(n, "errr", env.Queues.Sub)
	n.SetSocks(in, []*node.OutSock{out, errr})
	return n, nil
}

// Source returns the expression text.
func (n *Expr) Source() string { return n.src }

func (n *Expr) eval(ctx *node.Context) error {
	variables := map[string]cty.Value{}
	for _, name := range n.vars {
		v, ok := n.FindIn(name).Peek()
		if !ok {
			return fmt.Errorf("input %q has no value", name)
		}
		cv, err := toCty(v)
		if err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
		variables[name] = cv
	}
	cv, diags := n.expr.Value(&hcl.EvalContext{Variables: variables})
	if diags.HasErrors() {
		return errors.New(diags.Error())
	}
	out, err := fromCty(cv)
	if err != nil {
		return err
	}
	n.FindOut("out").Send(ctx, out)
	return nil
}

func toCty(v value.Value) (cty.Value, error) {
	switch {
	case v.IsInteger():
		n, _ := v.Int64()
		return cty.NumberIntVal(n), nil
	case v.IsScalar():
		f, _ := v.Float64()
		return cty.NumberFloatVal(f), nil
	case v.IsBoolean():
		b, _ := v.Boolean()
		return cty.BoolVal(b), nil
	case v.IsString():
		s, _ := v.Text()
		return cty.StringVal(s), nil
	case v.IsVec():
		var fs []float64
		if xy, err := v.Vector2(); err == nil {
			fs = xy[:]
		} else if xyz, err := v.Vector3(); err == nil {
			fs = xyz[:]
		} else if xyzw, err := v.Vector4(); err == nil {
			fs = xyzw[:]
		}
		elems := make([]cty.Value, len(fs))
		for i, f := range fs {
			elems[i] = cty.NumberFloatVal(f)
		}
		return cty.TupleVal(elems), nil
	case v.IsTuple():
		vs, _ := v.Tuple()
		if len(vs) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(vs))
		for i, e := range vs {
			cv, err := toCty(e)
			if err != nil {
				return cty.NilVal, err
			}
			elems[i] = cv
		}
		return cty.TupleVal(elems), nil
	default:
		return cty.NilVal, fmt.Errorf("%s is not expressible", v.Kind())
	}
}

func fromCty(cv cty.Value) (value.Value, error) {
	if cv.IsNull() {
		return value.Value{}, errors.New("expression yielded null")
	}
	ty := cv.Type()
	switch {
	case ty == cty.Number:
		bf := cv.AsBigFloat()
		if n, acc := bf.Int64(); acc == big.Exact {
			return value.Int(n), nil
		}
		f, _ := bf.Float64()
		return value.Scalar(f), nil
	case ty == cty.String:
		return value.Str(cv.AsString()), nil
	case ty == cty.Bool:
		return value.Bool(cv.True()), nil
	case ty.IsTupleType() || ty.IsListType():
		var vs []value.Value
		for _, e := range cv.AsValueSlice() {
			v, err := fromCty(e)
			if err != nil {
				return value.Value{}, err
			}
			vs = append(vs, v)
		}
		return value.Tuple(vs...), nil
	default:
		return value.Value{}, fmt.Errorf("expression yielded an unsupported %s", ty.FriendlyName())
	}
}

func (n *Expr) Serialize(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString("expr"); err != nil {
		return err
	}
	if err := enc.EncodeString(n.src); err != nil {
		return err
	}
	if err := enc.EncodeString("vars"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(len(n.vars)); err != nil {
		return err
	}
	for _, name := range n.vars {
		if err := enc.EncodeString(name); err != nil {
			return err
		}
	}
	return nil
}

func deserializeExpr(dec *msgpack.Decoder, env *file.Env) (file.File, error) {
	cnt, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	var src string
	var vars []string
	for i := 0; i < cnt; i++ {
		key, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		switch key {
		case "expr":
			if src, err = dec.DecodeString(); err != nil {
				return nil, err
			}
		case "vars":
			l, err := dec.DecodeArrayLen()
			if err != nil {
				return nil, err
			}
			for j := 0; j < l; j++ {
				name, err := dec.DecodeString()
				if err != nil {
					return nil, err
				}
				if err := file.CheckName(name); err != nil {
					return nil, file.Deserializef(err, "bad variable name")
				}
				vars = append(vars, name)
			}
		default:
			if err := dec.Skip(); err != nil {
				return nil, err
			}
		}
	}
	n, err := NewExpr(env, src, vars)
	if err != nil {
		return nil, file.Deserializef(err, "broken expression")
	}
	return n, nil
}

func (n *Expr) Clone(env *file.Env) (file.File, error) {
	return NewExpr(env, n.src, append([]string{}, n.vars...))
}
