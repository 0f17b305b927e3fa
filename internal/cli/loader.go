package cli

import (
	"errors"
	"fmt"

	"github.com/prio-data/queries-benchmark/internal/harness"
	"github.com/prio-data/queries-benchmark/internal/trials"
)

// loadTrials returns the built-in catalog when paths is empty, otherwise
// the trials defined by the files and directories in paths. Loading stops
// at the first bad file.
func loadTrials(paths []string) ([]harness.Trial, error) {
	if len(paths) == 0 {
		return trials.Catalog(), nil
	}

	files, err := harness.FindTrialFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no trial files found")
	}

	out := make([]harness.Trial, 0, len(files))
	seen := make(map[string]string, len(files))
	for _, path := range files {
		f, err := harness.LoadTrial(path)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[f.Name]; ok {
			return nil, fmt.Errorf("%s: trial %q already defined in %s", path, f.Name, prev)
		}
		seen[f.Name] = path
		out = append(out, f.Trial())
	}
	return out, nil
}

// findTrial resolves a trial by catalog name, or by path when ref names a
// trial file.
func findTrial(ref string) (harness.Trial, error) {
	if t, ok := trials.Lookup(ref); ok {
		return t, nil
	}
	f, err := harness.LoadTrial(ref)
	if err != nil {
		var le *harness.LoadError
		if errors.As(err, &le) {
			return harness.Trial{}, err
		}
		return harness.Trial{}, fmt.Errorf("unknown trial %q", ref)
	}
	return f.Trial(), nil
}
