// Package vm implements the stack-based filter/aggregation virtual
// machine: the opcode inventory (§4.3), the Program container (§3/§4.3)
// and the dispatch-loop executor (§4.5).
package vm

// Op is a single VM instruction opcode.
type Op uint8

const (
	OpHalt Op = iota
	OpGoto
	OpIfTrue
	OpIfFalse
	OpLabel // inventory-only; the compiler never emits it

	// Cursor
	OpOpenRead
	OpOpenIndex
	OpRewind
	OpNext
	OpSeekPrefix
	OpIndexNext
	OpClose

	// Document frame
	OpLoadDoc
	OpYield

	// Path
	OpGetField
	OpGetArrayElement

	// Literals
	OpPushValue

	// Stack
	OpPop
	OpPop2
	OpPopN
	OpDup

	// Predicates
	OpEqual
	OpEqualOrContains
	OpArrayEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual
	OpIn
	OpNotIn
	OpAll
	OpSize
	OpRegex

	// Logical modifier
	OpNegate

	// Aggregation helpers
	OpIncCounter
	OpStoreField
	OpDropField
	OpSortKey
	OpGroupKey
	OpAccumSum
	OpAccumAbs
)

var opNames = map[Op]string{
	OpHalt: "Halt", OpGoto: "Goto", OpIfTrue: "IfTrue", OpIfFalse: "IfFalse", OpLabel: "Label",
	OpOpenRead: "OpenRead", OpOpenIndex: "OpenIndex", OpRewind: "Rewind", OpNext: "Next",
	OpSeekPrefix: "SeekPrefix", OpIndexNext: "IndexNext", OpClose: "Close",
	OpLoadDoc: "LoadDoc", OpYield: "Yield",
	OpGetField: "GetField", OpGetArrayElement: "GetArrayElement",
	OpPushValue: "PushValue",
	OpPop: "Pop", OpPop2: "Pop2", OpPopN: "PopN", OpDup: "Dup",
	OpEqual: "Equal", OpEqualOrContains: "EqualOrContains", OpArrayEqual: "ArrayEqual",
	OpGreater: "Greater", OpGreaterEqual: "GreaterEqual", OpLess: "Less", OpLessEqual: "LessEqual",
	OpIn: "In", OpNotIn: "NotIn", OpAll: "All", OpSize: "Size", OpRegex: "Regex",
	OpNegate: "Negate",
	OpIncCounter: "IncCounter", OpStoreField: "StoreField", OpDropField: "DropField",
	OpSortKey: "SortKey", OpGroupKey: "GroupKey", OpAccumSum: "AccumSum", OpAccumAbs: "AccumAbs",
}

func (op Op) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "Unknown"
}

// Label is a symbolic forward jump target, resolved to an absolute
// instruction address by Builder.Build in program.go.
type Label int

// Instr is one (opcode, immediate) record. Which of the immediate
// fields is meaningful depends on Op.
type Instr struct {
	Op       Op
	Label    Label // symbolic branch target; Build writes its resolved address into Int
	Int      int   // pool index / counter id, or the resolved jump address for branching ops
	Str      string // field/collection/index name
	Dir      int   // sort direction (+1/-1) for SortKey; array index for GetArrayElement
}
