package core

// Doc is an ordered string->Value mapping. Insertion order is
// preserved across Set so that $addFields/$group output-order
// invariants (§4.6/§5) can be honored; the donor's plain
// map[string]interface{} document never gave that guarantee.
type Doc struct {
	order []string
	m     map[string]Value
}

// NewDoc creates an empty ordered document.
func NewDoc() *Doc {
	return &Doc{m: make(map[string]Value)}
}

// Get returns the value stored under key and whether it was present.
func (d *Doc) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Set inserts or overwrites key, preserving the position of an
// existing key and appending new keys at the end.
func (d *Doc) Set(key string, v Value) {
	if d.m == nil {
		d.m = make(map[string]Value)
	}
	if _, exists := d.m[key]; !exists {
		d.order = append(d.order, key)
	}
	d.m[key] = v
}

// Delete removes key, if present.
func (d *Doc) Delete(key string) {
	if _, ok := d.m[key]; !ok {
		return
	}
	delete(d.m, key)
	for i, k := range d.order {
		if k == key {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Keys returns the document's keys in insertion order.
func (d *Doc) Keys() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of fields.
func (d *Doc) Len() int { return len(d.order) }

// Clone performs a deep copy (arrays and nested documents are copied;
// scalars are copied by value).
func (d *Doc) Clone() *Doc {
	if d == nil {
		return nil
	}
	out := NewDoc()
	for _, k := range d.order {
		out.Set(k, cloneValue(d.m[k]))
	}
	return out
}

func cloneValue(v Value) Value {
	switch v.kind {
	case KindDocument:
		sub, _ := v.AsDocument()
		return DocumentValue(sub.Clone())
	case KindArray:
		items, _ := v.AsArray()
		cp := make([]Value, len(items))
		for i, it := range items {
			cp[i] = cloneValue(it)
		}
		return Array(cp)
	default:
		return v
	}
}

// Equal implements document equality per §4.1: same set of keys,
// elementwise equal by Compare.
func (d *Doc) Equal(o *Doc) bool {
	if d.Len() != o.Len() {
		return false
	}
	for _, k := range d.order {
		av, ok := d.Get(k)
		if !ok {
			continue
		}
		bv, ok := o.Get(k)
		if !ok {
			return false
		}
		if Compare(av, bv) != Equal {
			return false
		}
	}
	return true
}
