package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/internal/util"
)

// DefaultForEachConcurrency bounds the number of elements processed at once.
const DefaultForEachConcurrency = 4

// ForEachAgent applies its sub-flow to every element of the collection held
// in Previous.
//
// The collection must be a list (a []any, []string or a JSON array text).
// Every element is checked against the item type before any sub-flow
// starts. Elements are processed concurrently up to the configured limit
// and the output lists the per-element results in collection order. The
// first element failure cancels the rest.
type ForEachAgent struct {
	BaseAgent
	item        string
	schema      map[string]any
	child       core.Node
	concurrency int
}

// ForEachOptions configures a ForEachAgent.
type ForEachOptions struct {
	// Concurrency bounds parallel element processing. Values below 1 select
	// DefaultForEachConcurrency.
	Concurrency int
}

// NewForEachAgent creates a forEach node. item is either a JSON schema
// object, a JSON type name or a free-form description that accepts any
// element.
func NewForEachAgent(item string, child core.Node, optFns ...func(o *ForEachOptions)) *ForEachAgent {
	opts := ForEachOptions{Concurrency: DefaultForEachConcurrency}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultForEachConcurrency
	}

	f := &ForEachAgent{
		BaseAgent:   NewBaseAgent(definition.ForEachAgent),
		item:        item,
		child:       child,
		concurrency: opts.Concurrency,
	}
	if trimmed := strings.TrimSpace(item); strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		if m, ok := gjson.Parse(trimmed).Value().(map[string]any); ok {
			f.schema = m
		}
	}
	return f
}

// Item returns the declared element type.
func (f *ForEachAgent) Item() string { return f.item }

// Run implements core.Node.
func (f *ForEachAgent) Run(rc *core.RunContext) (core.Output, error) {
	return f.execute(rc, func(rc *core.RunContext) (core.Output, error) {
		items, err := collection(rc.Previous)
		if err != nil {
			return nil, core.NewNodeError(core.ErrSchemaMismatch, rc.Path, f.Name(), err)
		}
		for i, it := range items {
			if err := f.check(it); err != nil {
				return nil, core.NewNodeError(core.ErrSchemaMismatch, rc.Path, f.Name(), fmt.Errorf("element %d: %w", i, err))
			}
		}

		g, ctx := errgroup.WithContext(rc.Context)
		g.SetLimit(f.concurrency)
		base := rc.WithContext(ctx)

		outs := make([]any, len(items))
		for i, it := range items {
			if ctx.Err() != nil {
				break
			}
			g.Go(func() error {
				o, err := f.child.Run(base.Child(0).WithItem(i, it))
				if err != nil {
					return f.childError(rc, 0, fmt.Errorf("element %d: %w", i, err))
				}
				outs[i] = o
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		// the caller's cancellation stops dispatch without a child error
		if err := rc.Err(); err != nil {
			return nil, err
		}
		return outs, nil
	}, nil)
}

func (f *ForEachAgent) check(item any) error {
	if f.schema != nil {
		return util.ValidateValue(item, f.schema)
	}
	switch t := strings.ToLower(strings.TrimSpace(f.item)); t {
	case "string", "number", "integer", "boolean", "object", "array":
		if !util.IsValidType(item, t) {
			return fmt.Errorf("expected %s, got %s", t, util.JSONType(item))
		}
	}
	return nil
}

// collection interprets a previous output as a list of elements.
func collection(prev core.Output) ([]any, error) {
	switch v := prev.(type) {
	case []any:
		return v, nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return items, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if !gjson.Valid(trimmed) {
			return nil, fmt.Errorf("input is not a collection")
		}
		res := gjson.Parse(trimmed)
		if !res.IsArray() {
			return nil, fmt.Errorf("input is not a collection: got %s", res.Type)
		}
		items, _ := res.Value().([]any)
		if items == nil {
			items = []any{}
		}
		return items, nil
	case nil:
		return nil, fmt.Errorf("input is not a collection: got null")
	}

	// typed slices and structs take the JSON round trip
	b, err := json.Marshal(prev)
	if err != nil {
		return nil, fmt.Errorf("input is not a collection: %w", err)
	}
	return collection(string(b))
}
