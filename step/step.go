package step

// Type is the tag identifying a step variant. The values match the editor's
// persisted `type` field.
type Type string

const (
	// TypeCall is a leaf invocation of one named agent.
	TypeCall Type = "step"
	// TypeSequence runs children strictly in order.
	TypeSequence Type = "sequence"
	// TypeParallel runs children concurrently.
	TypeParallel Type = "parallel"
	// TypeOneOf runs the first branch whose condition holds.
	TypeOneOf Type = "oneOf"
	// TypeForEach runs a sub-flow once per collection element.
	TypeForEach Type = "forEach"
	// TypeEvaluator repeats a sub-flow until it satisfies a criterion.
	TypeEvaluator Type = "evaluator"
	// TypeBestOfAll runs all children and keeps the best result.
	TypeBestOfAll Type = "bestOfAll"
)

// Types lists every variant tag in declaration order.
var Types = []Type{TypeCall, TypeSequence, TypeParallel, TypeOneOf, TypeForEach, TypeEvaluator, TypeBestOfAll}

// Valid reports whether t names a known variant.
func (t Type) Valid() bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Step is a node of the flow tree. The set of implementations is closed;
// only the variant types of this package satisfy it.
type Step interface {
	Type() Type
	isStep()
}

// Call invokes the agent named Agent with a literal (possibly templated)
// textual input.
type Call struct {
	Agent string
	Input string
}

// Sequence executes Steps one after another.
type Sequence struct {
	Steps []Step
}

// Parallel executes Steps concurrently.
type Parallel struct {
	Steps []Step
}

// Branch pairs a condition with the flow executed when it holds.
type Branch struct {
	When string
	Flow Step
}

// OneOf executes the flow of the first branch whose condition holds.
type OneOf struct {
	Branches []Branch
}

// ForEach executes InputFlow once per element of a runtime collection.
// Item describes the element type or schema.
type ForEach struct {
	Item      string
	InputFlow Step
}

// Evaluator repeatedly executes SubFlow, judging each result against
// Criteria, until it passes or MaxIterations is exhausted. A nil
// MaxIterations means "use the engine default".
type Evaluator struct {
	Criteria      string
	MaxIterations *int
	SubFlow       Step
}

// BestOfAll executes all Steps and selects the result that best satisfies
// Criteria.
type BestOfAll struct {
	Criteria string
	Steps    []Step
}

func (Call) Type() Type      { return TypeCall }
func (Sequence) Type() Type  { return TypeSequence }
func (Parallel) Type() Type  { return TypeParallel }
func (OneOf) Type() Type     { return TypeOneOf }
func (ForEach) Type() Type   { return TypeForEach }
func (Evaluator) Type() Type { return TypeEvaluator }
func (BestOfAll) Type() Type { return TypeBestOfAll }

func (Call) isStep()      {}
func (Sequence) isStep()  {}
func (Parallel) isStep()  {}
func (OneOf) isStep()     {}
func (ForEach) isStep()   {}
func (Evaluator) isStep() {}
func (BestOfAll) isStep() {}

// Iterations returns a pointer to n, convenient for Evaluator literals.
func Iterations(n int) *int { return &n }

// New returns the editor default for a variant. Unknown types yield an empty
// Call.
func New(t Type) Step {
	switch t {
	case TypeSequence:
		return Sequence{Steps: []Step{}}
	case TypeParallel:
		return Parallel{Steps: []Step{}}
	case TypeOneOf:
		return OneOf{Branches: []Branch{{When: "condition", Flow: Call{}}}}
	case TypeForEach:
		return ForEach{Item: "string", InputFlow: Call{}}
	case TypeEvaluator:
		return Evaluator{SubFlow: Call{}}
	case TypeBestOfAll:
		return BestOfAll{Steps: []Step{Call{}, Call{}}}
	default:
		return Call{}
	}
}

// Children returns the positional children of s. For OneOf these are the
// branch flows; ForEach and Evaluator have a single child. Leaves and nil
// have none. The returned slice is a copy.
func Children(s Step) []Step {
	switch v := s.(type) {
	case Sequence:
		return append([]Step(nil), v.Steps...)
	case Parallel:
		return append([]Step(nil), v.Steps...)
	case BestOfAll:
		return append([]Step(nil), v.Steps...)
	case OneOf:
		out := make([]Step, len(v.Branches))
		for i, b := range v.Branches {
			out[i] = b.Flow
		}
		return out
	case ForEach:
		return []Step{v.InputFlow}
	case Evaluator:
		return []Step{v.SubFlow}
	default:
		return nil
	}
}

// Equal reports whether a and b have the same shape and field values. Nil
// and empty child lists compare equal.
func Equal(a, b Step) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() {
		return false
	}
	switch x := a.(type) {
	case Call:
		y := b.(Call)
		return x.Agent == y.Agent && x.Input == y.Input
	case Sequence:
		return equalList(x.Steps, b.(Sequence).Steps)
	case Parallel:
		return equalList(x.Steps, b.(Parallel).Steps)
	case BestOfAll:
		y := b.(BestOfAll)
		return x.Criteria == y.Criteria && equalList(x.Steps, y.Steps)
	case OneOf:
		y := b.(OneOf)
		if len(x.Branches) != len(y.Branches) {
			return false
		}
		for i := range x.Branches {
			if x.Branches[i].When != y.Branches[i].When || !Equal(x.Branches[i].Flow, y.Branches[i].Flow) {
				return false
			}
		}
		return true
	case ForEach:
		y := b.(ForEach)
		return x.Item == y.Item && Equal(x.InputFlow, y.InputFlow)
	case Evaluator:
		y := b.(Evaluator)
		if (x.MaxIterations == nil) != (y.MaxIterations == nil) {
			return false
		}
		if x.MaxIterations != nil && *x.MaxIterations != *y.MaxIterations {
			return false
		}
		return x.Criteria == y.Criteria && Equal(x.SubFlow, y.SubFlow)
	}
	return false
}

func equalList(a, b []Step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Agents returns the distinct agent names referenced by leaves under root,
// in first-seen depth-first order.
func Agents(root Step) []string {
	seen := map[string]bool{}
	var names []string
	Walk(root, func(_ Path, s Step) bool {
		if c, ok := s.(Call); ok && !seen[c.Agent] {
			seen[c.Agent] = true
			names = append(names, c.Agent)
		}
		return true
	})
	return names
}

// Walk visits root and its descendants depth-first, pre-order. Returning
// false from fn skips the children of the visited node. Nil nodes are not
// visited.
func Walk(root Step, fn func(Path, Step) bool) {
	walk(Root, root, fn)
}

func walk(p Path, s Step, fn func(Path, Step) bool) {
	if s == nil {
		return
	}
	if !fn(p, s) {
		return
	}
	for i, c := range Children(s) {
		walk(p.Child(i), c, fn)
	}
}
