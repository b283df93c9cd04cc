package vm

import "github.com/axaubet/bunql/internal/core"

// Program is an immutable, linear sequence of instructions, with every
// branch target already resolved to an instruction address, plus an
// interned pool of static Values (§3 "Program"). Programs are safe to share across concurrent
// executions once built: Build() never mutates the receiver's
// exported state again.
type Program struct {
	Instrs []Instr
	Pool    []core.Value
}

// Builder assembles a Program incrementally: emitting instructions,
// allocating fresh labels, and interning literal values. Call Build
// once all labels have been bound with Bind.
type Builder struct {
	instrs    []Instr
	pool      []core.Value
	poolIndex map[string]int // best-effort interning for simple scalars; arrays/docs always get a fresh slot
	labels    map[Label]int  // label -> bound instruction index
	nextLabel Label
}

func NewBuilder() *Builder {
	return &Builder{
		poolIndex: make(map[string]int),
		labels:    make(map[Label]int),
	}
}

// NewLabel allocates a fresh, as-yet-unbound label.
func (b *Builder) NewLabel() Label {
	b.nextLabel++
	return b.nextLabel
}

// Bind fixes label l to the address of the *next* instruction to be
// emitted (i.e. call Bind immediately before emitting the instruction
// the label should point at).
func (b *Builder) Bind(l Label) {
	b.labels[l] = len(b.instrs)
}

// Pos returns the address of the next instruction to be emitted.
func (b *Builder) Pos() int { return len(b.instrs) }

// Intern stores v in the static pool and returns its index, reusing a
// slot for identical scalar literals emitted more than once (e.g. the
// same query literal reused across $and branches).
func (b *Builder) Intern(v core.Value) int {
	if v.Kind() != core.KindArray && v.Kind() != core.KindDocument {
		key := v.String() + "\x00" + string(rune(v.Kind()))
		if idx, ok := b.poolIndex[key]; ok {
			return idx
		}
		idx := len(b.pool)
		b.pool = append(b.pool, v)
		b.poolIndex[key] = idx
		return idx
	}
	idx := len(b.pool)
	b.pool = append(b.pool, v)
	return idx
}

// Emit appends a raw instruction and returns its address.
func (b *Builder) Emit(i Instr) int {
	b.instrs = append(b.instrs, i)
	return len(b.instrs) - 1
}

func (b *Builder) EmitOp(op Op) int                    { return b.Emit(Instr{Op: op}) }
func (b *Builder) EmitGoto(op Op, l Label) int          { return b.Emit(Instr{Op: op, Label: l}) }
func (b *Builder) EmitStr(op Op, s string) int          { return b.Emit(Instr{Op: op, Str: s}) }
func (b *Builder) EmitStrGoto(op Op, s string, l Label) int {
	return b.Emit(Instr{Op: op, Str: s, Label: l})
}
func (b *Builder) EmitInt(op Op, n int) int              { return b.Emit(Instr{Op: op, Int: n}) }
func (b *Builder) EmitIntGoto(op Op, n int, l Label) int { return b.Emit(Instr{Op: op, Int: n, Label: l}) }
func (b *Builder) EmitPush(poolIdx int) int              { return b.Emit(Instr{Op: OpPushValue, Int: poolIdx}) }
func (b *Builder) EmitSortKey(path string, dir int) int {
	return b.Emit(Instr{Op: OpSortKey, Str: path, Dir: dir})
}

// Build resolves every Label-valued instruction field to an absolute
// instruction address and returns the finished, immutable Program.
// Panics if a referenced label was never Bind-ed — that is a compiler
// bug, not a user-facing error, since every emitted branch must target
// a label the same compilation pass bound.
func (b *Builder) Build() *Program {
	instrs := make([]Instr, len(b.instrs))
	copy(instrs, b.instrs)

	for i := range instrs {
		switch instrs[i].Op {
		case OpGoto, OpIfTrue, OpIfFalse, OpRewind, OpNext, OpIndexNext, OpGetField, OpGetArrayElement, OpSeekPrefix:
			addr, ok := b.labels[instrs[i].Label]
			if !ok {
				panic("vm: unbound label in program")
			}
			instrs[i].Int = addr
		}
	}

	pool := make([]core.Value, len(b.pool))
	copy(pool, b.pool)

	return &Program{Instrs: instrs, Pool: pool}
}
