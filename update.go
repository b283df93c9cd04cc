package bunql

import (
	"fmt"
	"math/big"

	"github.com/axaubet/bunql/internal/core"
)

// applyUpdate applies update's operators to doc in place, ported from
// bundoc/storage/document.go's ApplyPatch/setPath/deletePath but
// generalized from a plain $unset+merge to the full operator set:
// $set, $unset, $inc, $mul, $min, $max, $rename, $push, $pop.
func applyUpdate(doc *core.Doc, update *core.Doc) error {
	for _, op := range update.Keys() {
		argVal, _ := update.Get(op)
		args, ok := argVal.AsDocument()
		if !ok {
			return fmt.Errorf("%w: update operator %q requires a document argument", core.ErrInvalidField, op)
		}
		var err error
		switch op {
		case "$set":
			err = forEachField(args, func(path string, v core.Value) error {
				return setPath(doc, path, v)
			})
		case "$unset":
			err = forEachField(args, func(path string, _ core.Value) error {
				return deletePath(doc, path)
			})
		case "$inc":
			err = numericCombine(doc, args, func(cur, delta *big.Rat) *big.Rat {
				return new(big.Rat).Add(cur, delta)
			})
		case "$mul":
			err = numericCombine(doc, args, func(cur, factor *big.Rat) *big.Rat {
				return new(big.Rat).Mul(cur, factor)
			})
		case "$min":
			err = numericCombine(doc, args, func(cur, other *big.Rat) *big.Rat {
				if other.Cmp(cur) < 0 {
					return other
				}
				return cur
			})
		case "$max":
			err = numericCombine(doc, args, func(cur, other *big.Rat) *big.Rat {
				if other.Cmp(cur) > 0 {
					return other
				}
				return cur
			})
		case "$rename":
			err = forEachField(args, func(path string, v core.Value) error {
				newName, ok := v.AsString()
				if !ok {
					return fmt.Errorf("%w: $rename target must be a string", core.ErrInvalidField)
				}
				cur, exists := core.Resolve(doc, core.SplitPath(path))
				if !exists {
					return nil
				}
				if err := deletePath(doc, path); err != nil {
					return err
				}
				return setPath(doc, newName, cur)
			})
		case "$push":
			err = forEachField(args, func(path string, v core.Value) error {
				return pushPath(doc, path, v)
			})
		case "$pop":
			err = forEachField(args, func(path string, v core.Value) error {
				return popPath(doc, path, v)
			})
		default:
			return fmt.Errorf("%w: %s", core.ErrUnknownOperator, op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func forEachField(args *core.Doc, fn func(path string, v core.Value) error) error {
	for _, k := range args.Keys() {
		if k == "_id" {
			return core.ErrModifyIDForbidden
		}
		v, _ := args.Get(k)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func numericCombine(doc *core.Doc, args *core.Doc, combine func(cur, arg *big.Rat) *big.Rat) error {
	return forEachField(args, func(path string, v core.Value) error {
		argRat, ok := numericRat(v)
		if !ok {
			return fmt.Errorf("%w: %s requires a numeric argument", core.ErrInvalidField, path)
		}
		curVal, exists := core.Resolve(doc, core.SplitPath(path))
		var curRat *big.Rat
		if !exists || curVal.IsNull() {
			curRat = new(big.Rat)
		} else {
			curRat, ok = numericRat(curVal)
			if !ok {
				return fmt.Errorf("%w: %s is not numeric", core.ErrInvalidField, path)
			}
		}
		return setPath(doc, path, core.Decimal(combine(curRat, argRat)))
	})
}

// numericRat widens v to an exact big.Rat, duplicating the same
// widening logic internal/agg/expr.go and internal/vm/exec.go use
// (core.Value.numericRat is private to the core package).
func numericRat(v core.Value) (*big.Rat, bool) {
	switch v.Kind() {
	case core.KindInt32:
		i, _ := v.AsInt32()
		return big.NewRat(int64(i), 1), true
	case core.KindInt64:
		i, _ := v.AsInt64()
		return big.NewRat(i, 1), true
	case core.KindDouble:
		f, _ := v.AsDouble()
		r := new(big.Rat)
		r.SetFloat64(f)
		return r, true
	case core.KindDecimal:
		r, _ := v.AsDecimal()
		return r, true
	default:
		return nil, false
	}
}

func pushPath(doc *core.Doc, path string, v core.Value) error {
	cur, exists := core.Resolve(doc, core.SplitPath(path))
	var items []core.Value
	if exists {
		arr, ok := cur.AsArray()
		if !ok {
			return fmt.Errorf("%w: %s is not an array", core.ErrInvalidField, path)
		}
		items = arr
	}
	items = append(items, v)
	return setPath(doc, path, core.Array(items))
}

func popPath(doc *core.Doc, path string, v core.Value) error {
	cur, exists := core.Resolve(doc, core.SplitPath(path))
	if !exists {
		return nil
	}
	items, ok := cur.AsArray()
	if !ok {
		return fmt.Errorf("%w: %s is not an array", core.ErrInvalidField, path)
	}
	if len(items) == 0 {
		return nil
	}
	n, _ := v.AsInt32()
	if n < 0 {
		items = items[1:]
	} else {
		items = items[:len(items)-1]
	}
	return setPath(doc, path, core.Array(items))
}

// setPath writes value at a dotted path, creating intermediate
// documents as needed and overwriting any non-document value found in
// the way, matching the donor's own overwrite-on-conflict rule
// ("MongoDB overwrites. Let's overwrite.").
func setPath(doc *core.Doc, path string, value core.Value) error {
	segs := core.SplitPath(path)
	if len(segs) == 0 {
		return nil
	}
	if segs[0] == "_id" {
		return core.ErrModifyIDForbidden
	}
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.Get(seg)
		if ok {
			if sub, isDoc := next.AsDocument(); isDoc {
				cur = sub
				continue
			}
		}
		sub := core.NewDoc()
		cur.Set(seg, core.DocumentValue(sub))
		cur = sub
	}
	cur.Set(segs[len(segs)-1], value)
	return nil
}

// deletePath removes the field at a dotted path, a no-op if any
// segment along the way is absent or not a document.
func deletePath(doc *core.Doc, path string) error {
	segs := core.SplitPath(path)
	if len(segs) == 0 {
		return nil
	}
	if segs[0] == "_id" {
		return core.ErrModifyIDForbidden
	}
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur.Get(seg)
		if !ok {
			return nil
		}
		sub, isDoc := next.AsDocument()
		if !isDoc {
			return nil
		}
		cur = sub
	}
	cur.Delete(segs[len(segs)-1])
	return nil
}
