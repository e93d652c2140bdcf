package definitions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"smartlists/internal/filesystem"
	"smartlists/internal/logging"
	"smartlists/internal/metrics"
	"smartlists/internal/smartlist"
)

// ErrNotFound is returned by Get for unknown list ids.
var ErrNotFound = errors.New("definition not found")

// Problem describes a definition file that was skipped.
type Problem struct {
	File   string                      `json:"file"`
	Error  string                      `json:"error"`
	Fields []smartlist.ValidationError `json:"fields,omitempty"`
	At     time.Time                   `json:"at"`
}

// Store reads definitions from a directory. Every List call re-reads the
// directory so edits take effect on the next refresh.
type Store struct {
	dir string

	mu       sync.Mutex
	problems []Problem
}

// NewStore returns a store reading dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store reads.
func (s *Store) Dir() string { return s.dir }

func isDefinitionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return !strings.HasPrefix(name, ".")
	}
	return false
}

// List loads every valid definition, sorted by id. Unreadable, corrupt or
// invalid files and duplicate ids are skipped and reported by Problems.
func (s *Store) List(ctx context.Context) ([]*smartlist.SmartList, error) {
	entries, err := filesystem.ReadDirWithRetry(s.dir, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("reading definitions directory %s: %w", s.dir, err)
	}

	var (
		lists    []*smartlist.SmartList
		problems []Problem
		seen     = make(map[string]string)
	)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isDefinitionFile(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		l, err := LoadFile(path)
		if err != nil {
			problems = append(problems, newProblem(e.Name(), err))
			continue
		}
		if other, dup := seen[l.ID]; dup {
			problems = append(problems, newProblem(e.Name(), fmt.Errorf("duplicate id %q, already defined in %s", l.ID, other)))
			continue
		}
		seen[l.ID] = e.Name()
		lists = append(lists, l)
	}

	slices.SortFunc(lists, func(a, b *smartlist.SmartList) int { return strings.Compare(a.ID, b.ID) })

	for _, p := range problems {
		logging.Warn("Skipping list definition %s: %s", p.File, p.Error)
	}
	metrics.DefinitionLoadErrorsTotal.Add(float64(len(problems)))

	s.mu.Lock()
	s.problems = problems
	s.mu.Unlock()
	return lists, nil
}

func newProblem(file string, err error) Problem {
	p := Problem{File: file, Error: err.Error(), At: time.Now()}
	for _, ve := range smartlist.ValidationErrors(err) {
		if ve.Field != "" {
			p.Fields = append(p.Fields, ve)
		}
	}
	return p
}

// Get returns one definition or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*smartlist.SmartList, error) {
	lists, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, l := range lists {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Lookup reports ok=false for unknown ids.
func (s *Store) Lookup(ctx context.Context, id string) (*smartlist.SmartList, bool, error) {
	l, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return l, true, nil
}

// Problems returns the files skipped by the last List.
func (s *Store) Problems() []Problem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.problems)
}

// LoadFile reads and validates one definition file. A missing id defaults to
// the file name without its extension.
func LoadFile(path string) (*smartlist.SmartList, error) {
	data, err := filesystem.ReadFileWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Decode(bytes.NewReader(data), stem)
}

// Decode parses one definition from r and validates it. YAML and JSON are
// both accepted. Unknown keys are rejected.
func Decode(r io.Reader, defaultID string) (*smartlist.SmartList, error) {
	l := smartlist.New()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(l); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty definition")
		}
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	if l.ID == "" {
		l.ID = defaultID
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}
