// Package agg implements the aggregation pipeline of §4.6: a sequence
// of stage documents compiled once and run over a stream of rows,
// reusing internal/vm wherever a stage's job is genuinely "evaluate a
// predicate or accumulate a value" rather than pure list bookkeeping.
package agg

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/axaubet/bunql/internal/core"
)

// Row pairs a document with the _id it was read under, threaded
// through every stage so $group/$addFields/$unset can still report
// which document an output row descends from.
type Row struct {
	ID  core.Value
	Doc *core.Doc
}

// exprKind classifies the three right-hand-side shapes §4.6 allows for
// $group's _id/accumulator fields and $addFields fields.
type exprKind int

const (
	exprConst exprKind = iota
	exprPath
	exprOp
)

type expr struct {
	kind exprKind
	arg  core.Value // exprConst: the literal itself. exprOp: the operator's raw argument.
	path string     // exprPath: the dotted path with its leading '$' stripped.
	op   string      // exprOp: "$sum" or "$abs".
}

// parseExpr classifies val per §4.6: an operator document ({$sum: ...}
// or {$abs: ...}), a string beginning with '$' (path reference), or
// any other value (constant).
func parseExpr(val core.Value) (expr, error) {
	if val.Kind() == core.KindString {
		s, _ := val.AsString()
		if strings.HasPrefix(s, "$") {
			return expr{kind: exprPath, path: s[1:]}, nil
		}
		return expr{kind: exprConst, arg: val}, nil
	}
	if val.Kind() == core.KindDocument {
		d, _ := val.AsDocument()
		if d.Len() == 1 {
			k := d.Keys()[0]
			if k == "$sum" || k == "$abs" {
				argVal, _ := d.Get(k)
				return expr{kind: exprOp, op: k, arg: argVal}, nil
			}
		}
	}
	return expr{kind: exprConst, arg: val}, nil
}

// evalScalar evaluates expr against a single document, used for
// $group's _id expression and its non-$sum accumulator fields
// ($addFields compiles the same expression shapes to VM code in
// addfields.go instead). $sum has no
// natural per-document meaning outside of grouping accumulation (there
// is nothing to sum over but the one document), so here it degrades to
// the numeric value of its argument; real accumulation happens in
// group.go via the VM's AccumSum opcode over a group's member rows.
func evalScalar(doc *core.Doc, e expr) (core.Value, error) {
	switch e.kind {
	case exprConst:
		return e.arg, nil
	case exprPath:
		v, ok := core.Resolve(doc, core.SplitPath(e.path))
		if !ok {
			return core.Null(), nil
		}
		return v, nil
	case exprOp:
		inner, err := parseExpr(e.arg)
		if err != nil {
			return core.Null(), err
		}
		v, err := evalScalar(doc, inner)
		if err != nil {
			return core.Null(), err
		}
		r, ok := numericRat(v)
		if !ok {
			return core.Null(), fmt.Errorf("%w: %s requires a numeric value", core.ErrTypeMismatch, e.op)
		}
		switch e.op {
		case "$abs":
			return core.Decimal(new(big.Rat).Abs(r)), nil
		case "$sum":
			return core.Decimal(r), nil
		}
	}
	return core.Null(), nil
}

func numericRat(v core.Value) (*big.Rat, bool) {
	switch v.Kind() {
	case core.KindInt32:
		i, _ := v.AsInt32()
		return new(big.Rat).SetInt64(int64(i)), true
	case core.KindInt64:
		i, _ := v.AsInt64()
		return new(big.Rat).SetInt64(i), true
	case core.KindDouble:
		f, _ := v.AsDouble()
		r := new(big.Rat)
		if r.SetFloat64(f) == nil {
			return nil, false
		}
		return r, true
	case core.KindDecimal:
		d, _ := v.AsDecimal()
		return d, true
	}
	return nil, false
}
