package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/prio-data/queries-benchmark/internal/queryset"
)

//go:embed trial.cue
var trialSchema string

// TrialFile is the on-disk form of a trial.
type TrialFile struct {
	// Name uniquely identifies the trial.
	Name string `yaml:"name" json:"name"`

	// Description explains what the trial exercises.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Message is printed when the trial passes. Defaults to "<name> worked".
	Message string `yaml:"message,omitempty" json:"message,omitempty"`

	// Queryset is published and fetched.
	Queryset queryset.Queryset `yaml:"queryset" json:"queryset"`

	// Assertions are checked in order against the fetched dataset.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// Assertion is one declarative check.
type Assertion struct {
	// Type is one of row_count, value, columns.
	Type string `yaml:"type" json:"type"`

	// Count is the expected row count (row_count).
	Count *int `yaml:"count,omitempty" json:"count,omitempty"`

	// At is the (time, unit) key of the row to inspect (value).
	At []int64 `yaml:"at,omitempty" json:"at,omitempty"`

	// Column and Equals name the value expected at At (value).
	Column string   `yaml:"column,omitempty" json:"column,omitempty"`
	Equals *float64 `yaml:"equals,omitempty" json:"equals,omitempty"`

	// Columns must all be present in the dataset (columns).
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`

	// Exact requires the dataset columns to be exactly Columns, in order
	// (columns).
	Exact bool `yaml:"exact,omitempty" json:"exact,omitempty"`
}

// LoadError is returned when a trial file cannot be read or is invalid.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// LoadTrial reads a trial from a YAML (.yaml, .yml) or CUE (.cue) file.
// Unknown fields are rejected in both formats.
func LoadTrial(path string) (*TrialFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trial file: %w", err)
	}

	var f *TrialFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err = decodeYAML(path, data)
	case ".cue":
		f, err = decodeCUE(path, data)
	default:
		return nil, &LoadError{Path: path, Message: "unsupported trial file extension (want .yaml, .yml or .cue)"}
	}
	if err != nil {
		return nil, err
	}

	if err := validateTrialFile(f); err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	return f, nil
}

func decodeYAML(path string, data []byte) (*TrialFile, error) {
	var f TrialFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("failed to parse YAML: %v", err)}
	}
	return &f, nil
}

// decodeCUE evaluates a CUE trial. The trial is either the whole file or
// its top-level "trial" field.
func decodeCUE(path string, data []byte) (*TrialFile, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(trialSchema, cue.Filename("trial.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile trial schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(path, err)
	}
	if nested := v.LookupPath(cue.ParsePath("trial")); nested.Exists() {
		v = nested
	}

	v = schema.LookupPath(cue.ParsePath("#Trial")).Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, err)
	}

	var f TrialFile
	if err := v.Decode(&f); err != nil {
		return nil, cueLoadError(path, err)
	}
	return &f, nil
}

// cueLoadError keeps the position of the first CUE error.
func cueLoadError(path string, err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Path: path, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Path: path, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

func validateTrialFile(f *TrialFile) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if err := f.Queryset.Validate(); err != nil {
		return err
	}
	if len(f.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i := range f.Assertions {
		if err := validateAssertion(i, &f.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Exact && a.Type != AssertColumns {
		return fmt.Errorf("assertions[%d]: exact only applies to columns", index)
	}

	switch a.Type {
	case AssertRowCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for row_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertValue:
		if len(a.At) != 2 {
			return fmt.Errorf("assertions[%d]: at must be [time, unit] for value", index)
		}
		if a.Column == "" {
			return fmt.Errorf("assertions[%d]: column is required for value", index)
		}
		if a.Equals == nil {
			return fmt.Errorf("assertions[%d]: equals is required for value", index)
		}
	case AssertColumns:
		if len(a.Columns) == 0 {
			return fmt.Errorf("assertions[%d]: columns list is required for columns", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// Trial builds the runnable trial. The queryset is copied so later edits to
// f do not reach a running trial.
func (f *TrialFile) Trial() Trial {
	qs := queryset.New(f.Queryset.Name, f.Queryset.LevelOfAnalysis).
		Describe(f.Queryset.Description).
		WithThemes(f.Queryset.Themes...)
	for _, c := range f.Queryset.Columns {
		qs = qs.WithColumn(c)
	}

	checks := make([]CheckFunc, 0, len(f.Assertions))
	for _, a := range f.Assertions {
		switch a.Type {
		case AssertRowCount:
			checks = append(checks, RowCount(*a.Count))
		case AssertValue:
			checks = append(checks, ValueAt(a.At[0], a.At[1], a.Column, *a.Equals))
		case AssertColumns:
			if a.Exact {
				checks = append(checks, MatchesColumns(a.Columns...))
			} else {
				checks = append(checks, HasColumns(a.Columns...))
			}
		}
	}

	message := f.Message
	if message == "" {
		message = f.Name + " worked"
	}

	return Trial{
		Name:        f.Name,
		Description: f.Description,
		Queryset:    qs,
		Check:       All(checks...),
		Message:     message,
	}
}

// FindTrialFiles expands paths into trial files. Directories are walked for
// .yaml, .yml and .cue files; plain files are returned as given. The result
// is sorted within each directory and keeps the argument order otherwise.
func FindTrialFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("trial path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isTrialFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", p, err)
		}
		slices.Sort(found)
		files = append(files, found...)
	}
	return files, nil
}

func isTrialFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}
