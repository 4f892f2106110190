package task

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codexloop/internal/errors"
	"codexloop/internal/logging"
)

// Store persists task state as one JSON document per task. Writes replace
// the whole document; partial-field patching is never performed. The store
// holds no in-memory copy of any state across calls.
type Store struct {
	dir    string
	logger *logging.Logger
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first save.
func NewStore(dir string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the state file path for a task id.
func (s *Store) Path(taskID string) string {
	return filepath.Join(s.dir, taskID+".json")
}

// Save writes the state document, replacing any previous version. The write
// goes through a temp file and rename so a reader never observes a
// half-written document.
func (s *Store) Save(state *State) error {
	if state == nil || state.TaskID == "" {
		return errors.NewStateStoreError("cannot save state without a task id", nil)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return errors.NewStateStoreError("failed to create state directory", err).
			WithTaskID(state.TaskID)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.NewStateStoreError("failed to serialize task state", err).
			WithTaskID(state.TaskID)
	}

	if err := atomicWriteFile(s.Path(state.TaskID), data, 0o644); err != nil {
		return errors.NewStateStoreError("failed to write task state", err).
			WithTaskID(state.TaskID)
	}

	s.logger.Debug("saved task state",
		"task_id", state.TaskID,
		"status", string(state.Status),
		"iteration", state.CurrentIteration)
	return nil
}

// Load reads the state document for a task id. A missing file maps to a
// NotFoundError; a file that exists but does not parse maps to
// ErrStateCorrupted.
func (s *Store) Load(taskID string) (*State, error) {
	if !ValidID(taskID) {
		return nil, errors.NewNotFoundError("task", taskID)
	}

	data, err := os.ReadFile(s.Path(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("task", taskID)
		}
		return nil, errors.NewStateStoreError("failed to read task state", err).
			WithTaskID(taskID)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.NewStateStoreError("task state file is corrupted",
			errors.Join(errors.ErrStateCorrupted, err)).WithTaskID(taskID)
	}
	return &state, nil
}

// List returns the ids of all tasks with a state file, newest first. The
// timestamp prefix in the id makes lexicographic order chronological.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewStateStoreError("failed to list task state", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".json")
		if name != e.Name() && ValidID(name) {
			ids = append(ids, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// atomicWriteFile writes data to a temp file in the same directory and
// renames it into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
