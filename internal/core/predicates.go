package core

// Predicates implements the value-level semantics behind the VM's
// comparison opcodes (§4.3). Each function takes the document-side
// value first and the query-side (literal) value second.

// EqualOrContains: if the document-side value is an array and the
// query-side is not, true iff any element compares Equal; otherwise
// standard equality.
func EqualOrContains(docVal, queryVal Value) bool {
	if docVal.kind == KindArray && queryVal.kind != KindArray {
		items, _ := docVal.AsArray()
		for _, it := range items {
			if Compare(it, queryVal) == Equal {
				return true
			}
		}
		return false
	}
	return Compare(docVal, queryVal) == Equal
}

// compareWithContains applies a scalar Ordering-based predicate with
// §4.3 "contains" semantics: if the document-side is an array, true
// iff any element satisfies pred; scalar-vs-scalar is the the
// straightforward comparison. Used by Greater/GreaterEqual/Less/LessEqual.
func compareWithContains(docVal, queryVal Value, pred func(Ordering) bool) bool {
	if docVal.kind == KindArray {
		items, _ := docVal.AsArray()
		for _, it := range items {
			if pred(Compare(it, queryVal)) {
				return true
			}
		}
		return false
	}
	return pred(Compare(docVal, queryVal))
}

func GreaterThan(docVal, queryVal Value) bool {
	return compareWithContains(docVal, queryVal, func(o Ordering) bool { return o == Greater })
}

func GreaterEqual(docVal, queryVal Value) bool {
	return compareWithContains(docVal, queryVal, func(o Ordering) bool { return o == Greater || o == Equal })
}

func LessThan(docVal, queryVal Value) bool {
	return compareWithContains(docVal, queryVal, func(o Ordering) bool { return o == Less })
}

func LessEqual(docVal, queryVal Value) bool {
	return compareWithContains(docVal, queryVal, func(o Ordering) bool { return o == Less || o == Equal })
}

// In: scalar document-side succeeds iff value is a member of the
// query list; array document-side succeeds iff the two arrays have a
// non-empty intersection (§4.3).
func In(docVal Value, list []Value) bool {
	if docVal.kind == KindArray {
		items, _ := docVal.AsArray()
		for _, it := range items {
			for _, q := range list {
				if Compare(it, q) == Equal {
					return true
				}
			}
		}
		return false
	}
	for _, q := range list {
		if Compare(docVal, q) == Equal {
			return true
		}
	}
	return false
}

// NotIn is the negation of In.
func NotIn(docVal Value, list []Value) bool {
	return !In(docVal, list)
}

// All requires the document-side array to contain every element of
// list. Per §9 (Open Questions), a non-array document value is false
// unconditionally, even when list is empty.
func All(docVal Value, list []Value) bool {
	if docVal.kind != KindArray {
		return false
	}
	items, _ := docVal.AsArray()
	for _, want := range list {
		found := false
		for _, it := range items {
			if Compare(it, want) == Equal {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SizeEquals implements $size: true iff the document-side value is an
// array whose length equals n (non-array => false).
func SizeEquals(docVal Value, n int) bool {
	if docVal.kind != KindArray {
		return false
	}
	items, _ := docVal.AsArray()
	return len(items) == n
}

// MatchesRegex implements $regex/Regex: if the document-side value is
// an array, true iff any string element matches (contains semantics);
// non-string, non-array document values never match.
func MatchesRegex(docVal Value, pattern Regex) (bool, error) {
	re, err := CompileRegex(pattern)
	if err != nil {
		return false, err
	}
	if docVal.kind == KindArray {
		items, _ := docVal.AsArray()
		for _, it := range items {
			if s, ok := it.AsString(); ok && re.MatchString(s) {
				return true, nil
			}
		}
		return false, nil
	}
	s, ok := docVal.AsString()
	if !ok {
		return false, nil
	}
	return re.MatchString(s), nil
}
