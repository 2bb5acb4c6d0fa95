package definition

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

type leafJSON struct {
	Agent string `json:"agent"`
	Input string `json:"input"`
}

type listJSON struct {
	Agent string       `json:"agent"`
	Input []Definition `json:"input"`
}

type oneOfJSON struct {
	Agent      string       `json:"agent"`
	Input      []Definition `json:"input"`
	Conditions []string     `json:"conditions"`
}

type forEachJSON struct {
	Agent string     `json:"agent"`
	Item  string     `json:"item"`
	Input Definition `json:"input"`
}

type optimizeJSON struct {
	Agent         string     `json:"agent"`
	Criteria      string     `json:"criteria"`
	MaxIterations *int       `json:"max_iterations,omitempty"`
	Input         Definition `json:"input"`
}

type bestOfAllJSON struct {
	Agent    string       `json:"agent"`
	Criteria string       `json:"criteria"`
	Input    []Definition `json:"input"`
}

// MarshalJSON encodes d in the stable wire shape of its operator. Each
// operator emits exactly its own keys; the empty definition is `{}`.
func (d Definition) MarshalJSON() ([]byte, error) {
	if d.IsEmpty() {
		return []byte("{}"), nil
	}
	switch d.Agent {
	case SequenceAgent, ParallelAgent:
		return json.Marshal(listJSON{Agent: d.Agent, Input: nonNil(d.Children)})
	case OneOfAgent:
		conds := d.Conditions
		if conds == nil {
			conds = []string{}
		}
		return json.Marshal(oneOfJSON{Agent: d.Agent, Input: nonNil(d.Children), Conditions: conds})
	case ForEachAgent:
		return json.Marshal(forEachJSON{Agent: d.Agent, Item: d.Item, Input: single(d.Children)})
	case OptimizeAgent:
		return json.Marshal(optimizeJSON{Agent: d.Agent, Criteria: d.Criteria, MaxIterations: d.MaxIterations, Input: single(d.Children)})
	case BestOfAllAgent:
		return json.Marshal(bestOfAllJSON{Agent: d.Agent, Criteria: d.Criteria, Input: nonNil(d.Children)})
	}
	return json.Marshal(leafJSON{Agent: d.Agent, Input: d.Text})
}

func nonNil(ds []Definition) []Definition {
	if ds == nil {
		return []Definition{}
	}
	return ds
}

func single(ds []Definition) Definition {
	if len(ds) == 0 {
		return Definition{}
	}
	return ds[0]
}

// UnmarshalJSON decodes the wire shape. The polymorphic `input` key is a
// string for leaves, an array for list operators and an object for forEach
// and optimize.
func (d *Definition) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return fmt.Errorf("%w: expected object, got %s", ErrMalformed, r.Type)
	}
	out, err := fromResult(r)
	if err != nil {
		return err
	}
	*d = out
	return nil
}

func fromResult(r gjson.Result) (Definition, error) {
	d := Definition{
		Agent:    r.Get("agent").String(),
		Criteria: r.Get("criteria").String(),
	}

	if item := r.Get("item"); item.Exists() {
		if item.Type == gjson.String {
			d.Item = item.String()
		} else {
			// schema objects are kept as raw JSON text
			d.Item = item.Raw
		}
	}

	if mi := r.Get("max_iterations"); mi.Exists() && mi.Type == gjson.Number {
		n := int(mi.Int())
		d.MaxIterations = &n
	}

	if conds := r.Get("conditions"); conds.Exists() {
		if !conds.IsArray() {
			return Definition{}, fmt.Errorf("%w: conditions must be an array", ErrMalformed)
		}
		d.Conditions = []string{}
		for _, c := range conds.Array() {
			d.Conditions = append(d.Conditions, c.String())
		}
	}

	input := r.Get("input")
	switch {
	case !input.Exists():
	case input.IsArray():
		d.Children = []Definition{}
		for _, el := range input.Array() {
			if !el.IsObject() {
				return Definition{}, fmt.Errorf("%w: %s input elements must be objects", ErrMalformed, d.Agent)
			}
			child, err := fromResult(el)
			if err != nil {
				return Definition{}, err
			}
			d.Children = append(d.Children, child)
		}
	case input.IsObject():
		child, err := fromResult(input)
		if err != nil {
			return Definition{}, err
		}
		d.Children = []Definition{child}
	case input.Type == gjson.String:
		d.Text = input.String()
	case input.Type == gjson.Null:
	default:
		d.Text = input.Raw
	}

	return d, nil
}

// Marshal encodes d in the stable wire format.
func Marshal(d Definition) ([]byte, error) {
	return json.Marshal(d)
}

// MarshalIndent is like Marshal with indentation, for display.
func MarshalIndent(d Definition) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Unmarshal decodes the wire format.
func Unmarshal(data []byte) (Definition, error) {
	var d Definition
	if err := json.Unmarshal(data, &d); err != nil {
		return Definition{}, err
	}
	return d, nil
}
