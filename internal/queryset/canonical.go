package queryset

import (
	"fmt"

	"github.com/prio-data/queries-benchmark/internal/canonical"
)

// MarshalCanonical renders the queryset's wire form as RFC 8785 canonical JSON.
//
// This is the publish payload and the input to Hash. Equal definitions
// always produce identical bytes.
func MarshalCanonical(q *Queryset) ([]byte, error) {
	if q == nil {
		return nil, fmt.Errorf("marshal queryset: nil queryset")
	}
	return canonical.Marshal(q.wireForm())
}

// wireForm builds the engine's JSON document for a queryset.
func (q *Queryset) wireForm() map[string]any {
	chains := q.Operations()
	operations := make([]any, len(chains))
	for i, ops := range chains {
		chain := make([]any, 0, len(ops))
		for _, op := range ops {
			args := make([]any, len(op.Arguments))
			for j, a := range op.Arguments {
				args[j] = a
			}
			chain = append(chain, map[string]any{
				"namespace": op.Namespace,
				"name":      op.Name,
				"arguments": args,
			})
		}
		operations[i] = chain
	}

	themes := make([]any, len(q.Themes))
	for i, t := range q.Themes {
		themes[i] = t
	}

	return map[string]any{
		"name":        q.Name,
		"loa":         string(q.LevelOfAnalysis),
		"description": q.Description,
		"themes":      themes,
		"operations":  operations,
	}
}
