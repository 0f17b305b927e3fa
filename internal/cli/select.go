package cli

import (
	"fmt"
	"path"

	"github.com/hashicorp/go-bexpr"

	"github.com/prio-data/queries-benchmark/internal/harness"
)

// Selector narrows a trial list by name glob and boolean expression.
//
// Expressions see these fields:
//
//	name         trial name
//	description  trial description
//	queryset     queryset name
//	level        level of analysis, e.g. "country_month"
//	columns      column names
//
// For example: level == "country_year" or "ged_cm" in columns
type Selector struct {
	glob string
	eval *bexpr.Evaluator
}

// NewSelector validates filter and where. Both may be empty.
func NewSelector(filter, where string) (*Selector, error) {
	s := &Selector{glob: filter}
	if filter != "" {
		if _, err := path.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
		}
	}
	if where != "" {
		eval, err := bexpr.CreateEvaluator(where)
		if err != nil {
			return nil, fmt.Errorf("invalid expression %q: %w", where, err)
		}
		s.eval = eval
	}
	return s, nil
}

// Select returns the matching trials in their original order.
func (s *Selector) Select(all []harness.Trial) ([]harness.Trial, error) {
	var out []harness.Trial
	for _, t := range all {
		ok, err := s.match(t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Selector) match(t harness.Trial) (bool, error) {
	if s.glob != "" {
		if ok, _ := path.Match(s.glob, t.Name); !ok {
			return false, nil
		}
	}
	if s.eval == nil {
		return true, nil
	}
	ok, err := s.eval.Evaluate(trialFields(t))
	if err != nil {
		return false, fmt.Errorf("evaluate expression for trial %s: %w", t.Name, err)
	}
	return ok, nil
}

func trialFields(t harness.Trial) map[string]any {
	fields := map[string]any{
		"name":        t.Name,
		"description": t.Description,
		"queryset":    "",
		"level":       "",
		"columns":     []string{},
	}
	if t.Queryset != nil {
		fields["queryset"] = t.Queryset.Name
		fields["level"] = string(t.Queryset.LevelOfAnalysis)
		fields["columns"] = t.Queryset.ColumnNames()
	}
	return fields
}
