package bunql

import (
	"context"
	"fmt"

	"github.com/axaubet/bunql/internal/agg"
	"github.com/axaubet/bunql/internal/core"
	"github.com/axaubet/bunql/internal/vm"
	"github.com/axaubet/bunql/rules"
	"github.com/axaubet/bunql/schema"
	"github.com/axaubet/bunql/storage"
)

// Collection is a named set of documents sharing one schema, one set
// of secondary indexes, and one set of CEL authorization rules.
type Collection struct {
	db   *Database
	name string
	id   uint64

	schema  *schema.Schema
	indexes []storage.IndexDescriptor
	rules   map[string]string // operation -> CEL expression, see §2.I
}

func newCollection(db *Database, name string, meta *collectionMeta) (*Collection, error) {
	sch, err := schema.Compile(meta.Schema)
	if err != nil {
		return nil, fmt.Errorf("bunql: collection %q: %w", name, err)
	}
	rulesCopy := make(map[string]string, len(meta.Rules))
	for k, v := range meta.Rules {
		rulesCopy[k] = v
	}
	return &Collection{
		db:      db,
		name:    name,
		id:      meta.ID,
		schema:  sch,
		indexes: append([]storage.IndexDescriptor(nil), meta.Indexes...),
		rules:   rulesCopy,
	}, nil
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// SetSchema compiles and installs a new JSON Schema, persisting it to
// the system catalog. An empty schemaJSON clears validation.
func (c *Collection) SetSchema(schemaJSON string) error {
	sch, err := schema.Compile(schemaJSON)
	if err != nil {
		return err
	}
	if err := c.db.meta.update(c.name, func(m *collectionMeta) { m.Schema = schemaJSON }); err != nil {
		return err
	}
	c.schema = sch
	return nil
}

// SetRule installs the CEL expression authorizing operation (one of
// "create", "read", "update", "delete", "list"), persisting it to the
// system catalog. An empty expression removes the rule, restoring the
// default-allow behavior documented in §2.I.
func (c *Collection) SetRule(operation, expression string) error {
	if err := c.db.meta.update(c.name, func(m *collectionMeta) {
		if expression == "" {
			delete(m.Rules, operation)
		} else {
			m.Rules[operation] = expression
		}
	}); err != nil {
		return err
	}
	if expression == "" {
		delete(c.rules, operation)
	} else {
		c.rules[operation] = expression
	}
	return nil
}

// EnsureIndex registers desc, backfilling entries for every document
// already stored (a full table scan), then persists the descriptor to
// the system catalog. Registering an index whose Name already exists
// replaces its descriptor but does not drop stale entries written
// under a previous definition — callers should not redefine an index
// in place, only add new ones.
func (c *Collection) EnsureIndex(ctx context.Context, desc storage.IndexDescriptor) error {
	err := c.db.engine.Update(func(txn storage.Txn) error {
		it := txn.NewIterator(storage.DocPrefix(c.id))
		defer it.Close()
		maint := storage.IndexMaintainer{CollectionID: c.id, Indexes: []storage.IndexDescriptor{desc}}
		for it.Next() {
			doc, err := storage.Unmarshal(it.Value())
			if err != nil {
				return err
			}
			id, _ := storage.GetID(doc)
			if err := maint.Insert(txn, id, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bunql: ensure index %q on %q: %w", desc.Name, c.name, err)
	}

	replaced := false
	for i := range c.indexes {
		if c.indexes[i].Name == desc.Name {
			c.indexes[i], replaced = desc, true
		}
	}
	if !replaced {
		c.indexes = append(c.indexes, desc)
	}
	return c.db.meta.update(c.name, func(m *collectionMeta) {
		for i := range m.Indexes {
			if m.Indexes[i].Name == desc.Name {
				m.Indexes[i] = desc
				return
			}
		}
		m.Indexes = append(m.Indexes, desc)
	})
}

// indexCatalog adapts Collection's registered indexes to vm.IndexCatalog.
type indexCatalog struct{ indexes []storage.IndexDescriptor }

func (ic indexCatalog) IndexOn(fieldPath string) (storage.IndexDescriptor, bool) {
	for _, idx := range ic.indexes {
		if idx.FieldPath == fieldPath {
			return idx, true
		}
	}
	return storage.IndexDescriptor{}, false
}

func (c *Collection) checkRule(operation string, auth *rules.AuthContext, resource map[string]interface{}) (bool, error) {
	if auth != nil && auth.IsAdmin {
		return true, nil
	}
	expr, ok := c.rules[operation]
	if !ok || expr == "" {
		return true, nil // default-allow, §2.I
	}
	return c.db.rulesEngine.Evaluate(expr, auth, resource)
}

// docToResource converts doc into the plain map[string]interface{}
// shape CEL's resource.data variable expects, mirroring schema
// package's own core.Value-to-plain-Go conversion (duplicated rather
// than exported across packages, since the two conversions serve
// unrelated consumers).
func docToResource(doc *core.Doc) map[string]interface{} {
	out := make(map[string]interface{}, doc.Len())
	for _, k := range doc.Keys() {
		v, _ := doc.Get(k)
		out[k] = resourceValue(v)
	}
	return out
}

func resourceValue(v core.Value) interface{} {
	switch v.Kind() {
	case core.KindNull:
		return nil
	case core.KindBool:
		b, _ := v.AsBool()
		return b
	case core.KindInt32:
		i, _ := v.AsInt32()
		return i
	case core.KindInt64:
		i, _ := v.AsInt64()
		return i
	case core.KindDouble:
		f, _ := v.AsDouble()
		return f
	case core.KindDecimal:
		r, _ := v.AsDecimal()
		f, _ := r.Float64()
		return f
	case core.KindString:
		s, _ := v.AsString()
		return s
	case core.KindObjectID:
		id, _ := v.AsObjectID()
		return id.String()
	case core.KindArray:
		items, _ := v.AsArray()
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = resourceValue(it)
		}
		return out
	case core.KindDocument:
		d, _ := v.AsDocument()
		sub := make(map[string]interface{}, d.Len())
		for _, k := range d.Keys() {
			fv, _ := d.Get(k)
			sub[k] = resourceValue(fv)
		}
		return sub
	default:
		return v.String()
	}
}

// Insert validates doc against the collection's schema, evaluates the
// "create" rule, assigns a fresh _id if absent, and persists the
// document plus its index entries atomically.
func (c *Collection) Insert(ctx context.Context, auth *rules.AuthContext, doc *core.Doc) (core.Value, error) {
	doc = doc.Clone()
	if _, ok := storage.GetID(doc); !ok {
		doc.Set("_id", core.ObjectIDValue(core.NewObjectID()))
	}
	id, _ := storage.GetID(doc)

	if err := c.schema.Validate(doc); err != nil {
		return core.Null(), err
	}
	allowed, err := c.checkRule("create", auth, docToResource(doc))
	if err != nil {
		return core.Null(), err
	}
	if !allowed {
		return core.Null(), fmt.Errorf("bunql: create on %q denied by rule", c.name)
	}

	raw, err := storage.Marshal(doc)
	if err != nil {
		return core.Null(), err
	}
	maint := storage.IndexMaintainer{CollectionID: c.id, Indexes: c.indexes}
	err = c.db.engine.Update(func(txn storage.Txn) error {
		if err := txn.Put(storage.DocKey(c.id, id), raw); err != nil {
			return err
		}
		return maint.Insert(txn, id, doc)
	})
	if err != nil {
		return core.Null(), fmt.Errorf("bunql: insert into %q: %w", c.name, err)
	}
	return id, nil
}

// FindByID fetches one document by its _id, evaluating the "read"
// rule. Returns storage.ErrDocumentNotFound if absent or denied.
func (c *Collection) FindByID(ctx context.Context, auth *rules.AuthContext, id core.Value) (*core.Doc, error) {
	raw, err := c.db.engine.Get(storage.DocKey(c.id, id))
	if err == storage.ErrKeyNotFound {
		return nil, storage.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	doc, err := storage.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	allowed, err := c.checkRule("read", auth, docToResource(doc))
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, storage.ErrDocumentNotFound
	}
	return doc, nil
}

// Find compiles filter and runs it over the best available access
// path (table scan, point lookup, or index scan), filtering matches a
// second time through the "read" rule.
func (c *Collection) Find(ctx context.Context, auth *rules.AuthContext, filter *core.Doc) ([]*core.Doc, error) {
	prog, plan, err := vm.Compile(filter, c.id, indexCatalog{c.indexes})
	if err != nil {
		return nil, err
	}

	source, err := c.sourceForPlan(plan)
	if err != nil {
		return nil, err
	}
	defer source.Close()

	var out []*core.Doc
	ex := vm.NewExec(prog, source, c.db.engine, c.id, func(doc *core.Doc, _ core.Value) bool {
		allowed, err := c.checkRule("read", auth, docToResource(doc))
		if err == nil && allowed {
			out = append(out, doc)
		}
		return true
	})
	if err := ex.Run(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Collection) sourceForPlan(plan vm.Plan) (vm.RowSource, error) {
	switch plan.Kind {
	case vm.PlanPointLookup:
		return vm.NewTableSource(c.db.engine, c.id), nil
	case vm.PlanIndexScan:
		return vm.NewIndexSource(c.db.engine, plan.SeekPrefix), nil
	default:
		return vm.NewTableSource(c.db.engine, c.id), nil
	}
}

// Aggregate runs an aggregation pipeline (§4.6) over every document of
// the collection, then evaluates the "read" rule against each output
// row and drops the rows it denies. The rule is not applied to the
// collection's documents before the first stage.
func (c *Collection) Aggregate(ctx context.Context, auth *rules.AuthContext, pipelineSpec []*core.Doc) ([]*core.Doc, error) {
	pipeline, err := agg.Compile(pipelineSpec)
	if err != nil {
		return nil, err
	}

	source := vm.NewTableSource(c.db.engine, c.id)
	defer source.Close()

	rows, err := pipeline.Run(ctx, source)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Doc, 0, len(rows))
	for _, r := range rows {
		allowed, err := c.checkRule("read", auth, docToResource(r.Doc))
		if err != nil {
			return nil, err
		}
		if allowed {
			out = append(out, r.Doc)
		}
	}
	return out, nil
}

// Delete removes one document by id, evaluating the "delete" rule
// first, and retracts its index entries atomically.
func (c *Collection) Delete(ctx context.Context, auth *rules.AuthContext, id core.Value) error {
	raw, err := c.db.engine.Get(storage.DocKey(c.id, id))
	if err == storage.ErrKeyNotFound {
		return storage.ErrDocumentNotFound
	}
	if err != nil {
		return err
	}
	doc, err := storage.Unmarshal(raw)
	if err != nil {
		return err
	}
	allowed, err := c.checkRule("delete", auth, docToResource(doc))
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("bunql: delete on %q denied by rule", c.name)
	}

	maint := storage.IndexMaintainer{CollectionID: c.id, Indexes: c.indexes}
	return c.db.engine.Update(func(txn storage.Txn) error {
		if err := txn.Delete(storage.DocKey(c.id, id)); err != nil {
			return err
		}
		return maint.Delete(txn, id, doc)
	})
}

// Update applies update (an update-operator document per §10: $set,
// $unset, $inc, $mul, $min, $max, $rename, $push, $pop) to the
// document identified by id, evaluating the "update" rule against the
// document's pre-update state.
//
// Unlike filter predicates, update operators are a straightforward
// field-rewrite pass with no branching or predicate evaluation to
// exploit, so this is implemented as a direct Go function over
// core.Doc rather than compiled to a bytecode program — the VM's
// value here would be purely ceremonial.
func (c *Collection) Update(ctx context.Context, auth *rules.AuthContext, id core.Value, update *core.Doc) error {
	raw, err := c.db.engine.Get(storage.DocKey(c.id, id))
	if err == storage.ErrKeyNotFound {
		return storage.ErrDocumentNotFound
	}
	if err != nil {
		return err
	}
	oldDoc, err := storage.Unmarshal(raw)
	if err != nil {
		return err
	}
	allowed, err := c.checkRule("update", auth, docToResource(oldDoc))
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("bunql: update on %q denied by rule", c.name)
	}

	newDoc := oldDoc.Clone()
	if err := applyUpdate(newDoc, update); err != nil {
		return err
	}
	if newID, ok := storage.GetID(newDoc); ok {
		if core.Compare(newID, id) != core.Equal {
			return core.ErrModifyIDForbidden
		}
	}
	if err := c.schema.Validate(newDoc); err != nil {
		return err
	}

	newRaw, err := storage.Marshal(newDoc)
	if err != nil {
		return err
	}
	maint := storage.IndexMaintainer{CollectionID: c.id, Indexes: c.indexes}
	return c.db.engine.Update(func(txn storage.Txn) error {
		if err := txn.Put(storage.DocKey(c.id, id), newRaw); err != nil {
			return err
		}
		return maint.Update(txn, id, oldDoc, newDoc)
	})
}
