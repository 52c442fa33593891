package trainer

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ErrStateMismatch is returned when a saved mid-epoch position belongs to a
// plan other than the one rebuilt for that epoch, typically after the
// sampler configuration changed.
var ErrStateMismatch = errors.New("trainer: saved state does not match the epoch plan")

// State is the position of a run: Step is the next step of Epoch to run.
type State struct {
	Epoch       int    `yaml:"epoch"`
	Step        int    `yaml:"step"`
	Fingerprint string `yaml:"fingerprint,omitempty"`
	RunID       string `yaml:"run_id,omitempty"`
}

// Resume reads the state at path. An empty path or a missing file is a fresh
// start.
func Resume(path string) (State, error) {
	var st State
	if path == "" {
		return st, nil
	}
	buf, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return st, errors.Wrap(err, "reading state")
	}
	if err := yaml.Unmarshal(buf, &st); err != nil {
		return st, errors.Wrapf(err, "parsing state %s", path)
	}
	if st.Epoch < 0 || st.Step < 0 {
		return st, errors.Errorf("state %s has negative position %d/%d", path, st.Epoch, st.Step)
	}
	return st, nil
}

// SaveState writes st to path, replacing the old file atomically.
func SaveState(path string, st State) error {
	buf, err := yaml.Marshal(st)
	if err != nil {
		return errors.Wrap(err, "encoding state")
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "writing state")
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "writing state")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "writing state")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "writing state")
}
