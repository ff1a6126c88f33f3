package ir

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/kefirc/amd64cg/internal/reg"
)

// Fixture is the textual, YAML-encoded stand-in for the externally-owned
// Module this backend normally receives already built (spec.md §6 —
// Input). cmd/kefir-amd64-dump loads one of these to exercise the
// translator without a real front-end/optimizer attached; production use
// never goes through this package. The shape mirrors Instruction's own
// flattened field layout directly (id/op/args/imm/targets/...) rather
// than a per-opcode schema, since that's exactly what Instruction already
// is — a single struct whose field meaning depends on the opcode.
type Fixture struct {
	Signatures map[uint32]SignatureFixture `yaml:"signatures"`
	Functions  []FunctionFixture           `yaml:"functions"`
}

type SignatureFixture struct {
	Params        []string `yaml:"params"`
	Results       []string `yaml:"results"`
	Variadic      bool     `yaml:"variadic"`
	FixedArgCount int      `yaml:"fixed_arg_count"`
}

type FrameFixture struct {
	LocalsSize             int64 `yaml:"locals_size"`
	SpillSlots              int   `yaml:"spill_slots"`
	RegisterAggregates      int   `yaml:"register_aggregates"`
	UsesRegisterSaveArea    bool  `yaml:"uses_register_save_area"`
	UsesImplicitParam       bool  `yaml:"uses_implicit_param"`
	UsesDynamicScope        bool  `yaml:"uses_dynamic_scope"`
}

type FunctionFixture struct {
	Name       string                     `yaml:"name"`
	Signature  SignatureFixture           `yaml:"signature"`
	Params     []uint32                   `yaml:"params"`
	Frame      FrameFixture               `yaml:"frame"`
	Blocks     []BlockFixture             `yaml:"blocks"`
	Analysis   *AnalysisFixture           `yaml:"analysis"`
	Allocation map[uint32]AllocationFixture `yaml:"allocation"`
}

type AnalysisFixture struct {
	Order     []uint32 `yaml:"order"`
	Reachable []uint32 `yaml:"reachable"`
}

type BlockFixture struct {
	ID           uint32         `yaml:"id"`
	Preds        []uint32       `yaml:"preds"`
	Succs        []uint32       `yaml:"succs"`
	Phis         []PhiFixture   `yaml:"phis"`
	Instructions []InstFixture  `yaml:"instructions"`
}

type PhiFixture struct {
	Result  uint32            `yaml:"result"`
	Sources map[uint32]uint32 `yaml:"sources"`
}

type CallFixture struct {
	Callee uint32   `yaml:"callee"`
	Sig    uint32   `yaml:"sig"`
	Args   []uint32 `yaml:"args"`
}

type InstFixture struct {
	ID         uint32       `yaml:"id"`
	Op         string       `yaml:"op"`
	Type       string       `yaml:"type"`
	Args       []uint32     `yaml:"args"`
	Imm        int64        `yaml:"imm"`
	BitOffset  uint32       `yaml:"bit_offset"`
	BitLength  uint32       `yaml:"bit_length"`
	Targets    []uint32     `yaml:"targets"`
	Symbol     string       `yaml:"symbol"`
	Call       *CallFixture `yaml:"call"`
}

type AllocationFixture struct {
	Kind   string `yaml:"kind"`
	Reg    string `yaml:"reg"`
	Index  int    `yaml:"index"`
	Base   string `yaml:"base"`
	Offset int64  `yaml:"offset"`
}

// LoadFixture parses data as a Fixture and builds the Module it
// describes.
func LoadFixture(data []byte) (*Module, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing IR fixture: %w", err)
	}
	return f.Build()
}

// Build converts a parsed Fixture into a Module.
func (f *Fixture) Build() (*Module, error) {
	mod := &Module{Signatures: make(map[SignatureID]Signature, len(f.Signatures))}
	for id, sf := range f.Signatures {
		sig, err := sf.build(SignatureID(id))
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", id, err)
		}
		mod.Signatures[SignatureID(id)] = sig
	}

	for _, ff := range f.Functions {
		fn, err := ff.build()
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", ff.Name, err)
		}
		mod.Functions = append(mod.Functions, fn)
	}
	return mod, nil
}

func (sf SignatureFixture) build(id SignatureID) (Signature, error) {
	params, err := parseTypes(sf.Params)
	if err != nil {
		return Signature{}, err
	}
	results, err := parseTypes(sf.Results)
	if err != nil {
		return Signature{}, err
	}
	return Signature{
		ID: id, Params: params, Results: results,
		Variadic: sf.Variadic, FixedArgCount: sf.FixedArgCount,
	}, nil
}

func parseTypes(names []string) ([]Type, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]Type, len(names))
	for i, n := range names {
		t, err := parseType(n)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func parseType(name string) (Type, error) {
	switch name {
	case "", "void":
		return Type{}, nil
	case "i8":
		return NewScalarType(TypeI8), nil
	case "i16":
		return NewScalarType(TypeI16), nil
	case "i32":
		return NewScalarType(TypeI32), nil
	case "i64":
		return NewScalarType(TypeI64), nil
	case "ptr":
		return NewScalarType(TypePtr), nil
	case "f32":
		return NewScalarType(TypeF32), nil
	case "f64":
		return NewScalarType(TypeF64), nil
	case "longdouble":
		return NewScalarType(TypeLongDouble), nil
	default:
		return Type{}, fmt.Errorf("unrecognised type %q (aggregates aren't supported by the fixture loader)", name)
	}
}

func (ff FunctionFixture) build() (*Function, error) {
	sig, err := ff.Signature.build(0)
	if err != nil {
		return nil, err
	}

	params := make([]Value, len(ff.Params))
	for i, p := range ff.Params {
		params[i] = Value(p)
	}

	fn := &Function{
		Name:      ff.Name,
		Signature: sig,
		Params:    params,
		Frame: FrameRequirements{
			LocalsSize:              ff.Frame.LocalsSize,
			SpillSlotCount:          ff.Frame.SpillSlots,
			RegisterAggregateCount:  ff.Frame.RegisterAggregates,
			UsesRegisterSaveArea:    ff.Frame.UsesRegisterSaveArea,
			UsesImplicitParam:       ff.Frame.UsesImplicitParam,
			UsesDynamicScope:        ff.Frame.UsesDynamicScope,
		},
	}

	for _, bf := range ff.Blocks {
		block, err := bf.build()
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", bf.ID, err)
		}
		fn.Blocks = append(fn.Blocks, block)
	}

	if ff.Analysis != nil {
		order := make([]BlockID, len(ff.Analysis.Order))
		for i, id := range ff.Analysis.Order {
			order[i] = BlockID(id)
		}
		reachable := make([]BlockID, len(ff.Analysis.Reachable))
		for i, id := range ff.Analysis.Reachable {
			reachable[i] = BlockID(id)
		}
		fn.Analysis = NewAnalysis(order, reachable)
	}

	alloc := NewRegisterAllocation()
	for v, af := range ff.Allocation {
		a, err := af.build()
		if err != nil {
			return nil, fmt.Errorf("allocation for value %d: %w", v, err)
		}
		alloc.Set(Value(v), a)
	}
	fn.Allocation = alloc

	return fn, nil
}

func (bf BlockFixture) build() (*Block, error) {
	block := &Block{ID: BlockID(bf.ID)}
	for _, pred := range bf.Preds {
		block.Preds = append(block.Preds, BlockID(pred))
	}
	for _, succ := range bf.Succs {
		block.Succs = append(block.Succs, BlockID(succ))
	}
	for _, pf := range bf.Phis {
		phi := Phi{Result: Value(pf.Result), Sources: make(map[BlockID]Value, len(pf.Sources))}
		for from, v := range pf.Sources {
			phi.Sources[BlockID(from)] = Value(v)
		}
		block.Phis = append(block.Phis, phi)
	}
	for _, inf := range bf.Instructions {
		inst, err := inf.build(block.ID)
		if err != nil {
			return nil, err
		}
		block.Instructions = append(block.Instructions, inst)
	}
	return block, nil
}

func (inf InstFixture) build(block BlockID) (*Instruction, error) {
	op, ok := ParseOpcode(inf.Op)
	if !ok {
		return nil, fmt.Errorf("unrecognised opcode %q", inf.Op)
	}
	typ, err := parseType(inf.Type)
	if err != nil {
		return nil, err
	}

	inst := &Instruction{
		id:     Value(inf.ID),
		opcode: op,
		typ:    typ,
		imm:    inf.Imm,
		bitOff: inf.BitOffset,
		bitLen: inf.BitLength,
		block:  block,
		symbol: inf.Symbol,
	}

	switch len(inf.Args) {
	case 0:
	case 1:
		inst.arg0 = Value(inf.Args[0])
	case 2:
		inst.arg0, inst.arg1 = Value(inf.Args[0]), Value(inf.Args[1])
	case 3:
		inst.arg0, inst.arg1, inst.arg2 = Value(inf.Args[0]), Value(inf.Args[1]), Value(inf.Args[2])
	default:
		inst.arg0, inst.arg1, inst.arg2 = Value(inf.Args[0]), Value(inf.Args[1]), Value(inf.Args[2])
		for _, a := range inf.Args[3:] {
			inst.args = append(inst.args, Value(a))
		}
	}

	for _, t := range inf.Targets {
		inst.targets = append(inst.targets, BlockID(t))
	}

	if inf.Call != nil {
		inst.callee = FuncRef(inf.Call.Callee)
		inst.sig = SignatureID(inf.Call.Sig)
		for _, a := range inf.Call.Args {
			inst.args = append(inst.args, Value(a))
		}
	}

	return inst, nil
}

func (af AllocationFixture) build() (Allocation, error) {
	switch af.Kind {
	case "", "none":
		return Allocation{Kind: AllocNone}, nil
	case "gpr", "fpr":
		r, ok := reg.ParseReg(af.Reg)
		if !ok {
			return Allocation{}, fmt.Errorf("unrecognised register %q", af.Reg)
		}
		if af.Kind == "gpr" {
			return GPR(r), nil
		}
		return FPR(r), nil
	case "spill":
		return Spill(af.Index), nil
	case "register_aggregate":
		return RegAggregate(af.Index), nil
	case "indirect":
		base, ok := reg.ParseReg(af.Base)
		if !ok {
			return Allocation{}, fmt.Errorf("unrecognised base register %q", af.Base)
		}
		return Indirect(base, af.Offset), nil
	default:
		return Allocation{}, fmt.Errorf("unrecognised allocation kind %q", af.Kind)
	}
}
