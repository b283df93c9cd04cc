package core

import "bytes"

// Ordering is the tri-state (plus incomparable) result of Compare.
type Ordering int8

const (
	Less Ordering = iota - 1
	Equal
	Greater
	Incomparable
)

// TypeTag exposes the canonical cross-type ordinal for k as a single
// byte, for use as the index key codec's type tag (storage's
// canonical value encoding). Keeping one source of truth for this
// table is required by §9 ("Cross-type comparison"): runtime compares
// and on-disk key ordering must never diverge.
func TypeTag(k Kind) byte { return byte(typeOrder(k)) }

// typeOrder fixes the canonical cross-type sort order demanded by
// §3/§4.1. It must stay consistent with the one-byte type tag used by
// the index key codec (storage/canonical.go) — the two are driven off
// this same table so runtime compares and index range scans never
// diverge (see §9, "Cross-type comparison").
func typeOrder(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindInt32, KindInt64, KindDouble, KindDecimal:
		return 1
	case KindString:
		return 2
	case KindDocument:
		return 3
	case KindArray:
		return 4
	case KindBinary:
		return 5
	case KindObjectID:
		return 6
	case KindBool:
		return 7
	case KindDateTime:
		return 8
	case KindTimestamp:
		return 9
	case KindRegex:
		return 10
	}
	return 99
}

// Compare implements the total order of §4.1. Any comparison involving
// a Regex returns Incomparable; values of different kinds outside the
// numeric family are ordered by typeOrder.
func Compare(a, b Value) Ordering {
	if a.kind == KindRegex || b.kind == KindRegex {
		return Incomparable
	}

	if a.IsNumeric() && b.IsNumeric() {
		ar, aok := a.numericRat()
		br, bok := b.numericRat()
		if !aok || !bok {
			return Incomparable // NaN on either side
		}
		switch ar.Cmp(br) {
		case -1:
			return Less
		case 1:
			return Greater
		default:
			return Equal
		}
	}

	if a.kind != b.kind {
		oa, ob := typeOrder(a.kind), typeOrder(b.kind)
		if oa < ob {
			return Less
		}
		if oa > ob {
			return Greater
		}
		return Incomparable
	}

	switch a.kind {
	case KindNull:
		return Equal
	case KindBool:
		av, _ := a.AsBool()
		bv, _ := b.AsBool()
		return boolOrdering(av, bv)
	case KindString:
		av, _ := a.AsString()
		bv, _ := b.AsString()
		return stringOrdering(av, bv)
	case KindBinary:
		av, _ := a.AsBinary()
		bv, _ := b.AsBinary()
		return byteOrdering(av, bv)
	case KindObjectID:
		av, _ := a.AsObjectID()
		bv, _ := b.AsObjectID()
		return byteOrdering(av[:], bv[:])
	case KindDateTime:
		av, _ := a.AsDateTime()
		bv, _ := b.AsDateTime()
		if av.Before(bv) {
			return Less
		}
		if av.After(bv) {
			return Greater
		}
		return Equal
	case KindTimestamp:
		av, _ := a.AsTimestamp()
		bv, _ := b.AsTimestamp()
		if av < bv {
			return Less
		}
		if av > bv {
			return Greater
		}
		return Equal
	case KindArray:
		return compareArrays(a, b)
	case KindDocument:
		return compareDocuments(a, b)
	}
	return Incomparable
}

func boolOrdering(a, b bool) Ordering {
	if a == b {
		return Equal
	}
	if !a && b {
		return Less
	}
	return Greater
}

func stringOrdering(a, b string) Ordering {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func byteOrdering(a, b []byte) Ordering {
	switch bytes.Compare(a, b) {
	case -1:
		return Less
	case 1:
		return Greater
	default:
		return Equal
	}
}

// compareArrays: two arrays are Equal iff same length and elementwise
// equal; otherwise ordered lexicographically by element, matching the
// usual total-order extension (needed so arrays can sit in a
// consistent position in $sort).
func compareArrays(a, b Value) Ordering {
	av, _ := a.AsArray()
	bv, _ := b.AsArray()
	n := len(av)
	if len(bv) < n {
		n = len(bv)
	}
	for i := 0; i < n; i++ {
		if o := Compare(av[i], bv[i]); o != Equal {
			return o
		}
	}
	switch {
	case len(av) < len(bv):
		return Less
	case len(av) > len(bv):
		return Greater
	default:
		return Equal
	}
}

// compareDocuments: two documents are Equal iff same set of keys and
// elementwise equal by Compare (§4.1). Unequal documents are ordered
// by key count only; two unequal documents with the same number of
// keys are Incomparable.
func compareDocuments(a, b Value) Ordering {
	ad, _ := a.AsDocument()
	bd, _ := b.AsDocument()
	if ad.Equal(bd) {
		return Equal
	}
	if ad.Len() != bd.Len() {
		if ad.Len() < bd.Len() {
			return Less
		}
		return Greater
	}
	return Incomparable
}

// ArrayEqual implements the $-free exact-array-equality used by the
// ArrayEqual opcode: same length, elementwise Equal.
func ArrayEqual(a, b Value) bool {
	av, aok := a.AsArray()
	bv, bok := b.AsArray()
	if !aok || !bok {
		return false
	}
	if len(av) != len(bv) {
		return false
	}
	for i := range av {
		if Compare(av[i], bv[i]) != Equal {
			return false
		}
	}
	return true
}

// ValuesEqual is a convenience equality check (Compare == Equal).
func ValuesEqual(a, b Value) bool {
	return Compare(a, b) == Equal
}
