package core

import "strconv"

// Path is a non-empty sequence of segments produced by splitting a
// dotted key on '.'. A segment is either a field name or an unsigned
// decimal integer; SplitPath does not interpret which — that decision
// is made at resolution/compile time (§4.2).
type Path []string

// SplitPath splits a dotted key into segments.
func SplitPath(key string) Path {
	var segs []string
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			segs = append(segs, key[start:i])
			start = i + 1
		}
	}
	segs = append(segs, key[start:])
	return segs
}

// segmentIndex reports whether segment s denotes a non-negative
// integer array index, per §4.2 ("numeric segments are positional").
func segmentIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Resolve implements the resolution algorithm of §4.2: dotted-path
// lookup through nested documents, with implicit projection through
// arrays of subdocuments and explicit positional access via numeric
// segments. Returns (value, true) on success or (Null(), false) when
// the path does not resolve.
func Resolve(doc *Doc, path Path) (Value, bool) {
	cur := DocumentValue(doc)
	for i, seg := range path {
		next, ok := resolveSegment(cur, seg, path[i+1:])
		if !ok {
			return Null(), false
		}
		cur = next
		if cur.kind == KindArray && isProjected(cur) {
			// projection already consumed the remaining path
			return cur, true
		}
	}
	return cur, true
}

// isProjected reports whether v is the flattened array result of an
// implicit array projection, used internally to short-circuit Resolve
// once a projection has already consumed the remaining path.
func isProjected(v Value) bool {
	return v.kind == KindArray && v.projected
}

func resolveSegment(cur Value, seg string, rest Path) (Value, bool) {
	switch cur.kind {
	case KindDocument:
		d, _ := cur.AsDocument()
		v, ok := d.Get(seg)
		if !ok {
			return Null(), false
		}
		return v, true
	case KindArray:
		items, _ := cur.AsArray()
		if idx, ok := segmentIndex(seg); ok {
			if idx < 0 || idx >= len(items) {
				return Null(), false
			}
			return items[idx], true
		}
		// Implicit projection: for each element that is a document,
		// recursively resolve the remaining path (seg + rest) and
		// flatten non-missing results into a synthetic array.
		fullRest := append(Path{seg}, rest...)
		var leaves []Value
		for _, el := range items {
			if el.kind != KindDocument {
				continue
			}
			sub, _ := el.AsDocument()
			if v, ok := Resolve(sub, fullRest); ok {
				leaves = appendFlatten(leaves, v)
			}
		}
		if len(leaves) == 0 {
			return Null(), false
		}
		out := Array(leaves)
		out.projected = true
		return out, true
	default:
		return Null(), false
	}
}

// appendFlatten appends v to leaves; if v is itself a projected array
// (produced by a nested projection), its elements are flattened in
// rather than nested, so projection always yields a flat array of
// leaves, never an array of arrays (§4.2).
func appendFlatten(leaves []Value, v Value) []Value {
	if v.kind == KindArray && isProjected(v) {
		items, _ := v.AsArray()
		return append(leaves, items...)
	}
	return append(leaves, v)
}

// SplitAtFirstIndex splits path at the first numeric segment, per
// §4.4: "Paths containing a numeric segment split at the first such
// segment". It returns the field-path prefix (the segments before the
// numeric one, as a Path), the index, and the remainder path (segments
// after it). ok is false if path has no numeric segment.
func SplitAtFirstIndex(path Path) (prefix Path, index int, remainder Path, ok bool) {
	for i, seg := range path {
		if idx, isNum := segmentIndex(seg); isNum {
			return path[:i], idx, path[i+1:], true
		}
	}
	return nil, 0, nil, false
}
