package rubric

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no rubric exists under the requested name.
var ErrNotFound = errors.New("rubric not found")

const (
	DefaultName = "default"
	SampleName  = "sample-rubric"
)

// Source is the blob access the store needs. Missing keys must surface as
// errors matching fs.ErrNotExist.
type Source interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Summary describes a selectable rubric.
type Summary struct {
	Filename    string `json:"filename"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Store struct {
	src      Source
	prefix   string
	fallback *Rubric
	log      zerolog.Logger
}

// NewStore reads rubrics stored as "<prefix><name>.json". fallback is used
// when neither the requested rubric nor "default" can be read; nil means Default().
func NewStore(src Source, prefix string, fallback *Rubric, logger zerolog.Logger) *Store {
	if fallback == nil {
		fallback = Default()
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{
		src:      src,
		prefix:   prefix,
		fallback: fallback,
		log:      logger.With().Str("component", "rubrics").Logger(),
	}
}

// Load reads and validates one rubric.
func (s *Store) Load(ctx context.Context, name string) (*Rubric, error) {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".json")
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrNotFound)
	}
	rc, err := s.src.Get(ctx, s.prefix+name+".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read rubric %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read rubric %s: %w", name, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("rubric %s: %w", name, err)
	}
	return r, nil
}

// LoadOrDefault loads name, falling back to "default" and then to the
// built-in rubric when a file is missing or not parseable. Invalid rubrics
// are returned as errors.
func (s *Store) LoadOrDefault(ctx context.Context, name string) (*Rubric, error) {
	r, err := s.Load(ctx, name)
	if err == nil {
		return r, nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) && !errors.Is(err, ErrShapeMismatch) {
		return nil, err
	}
	if name != DefaultName {
		s.log.Warn().Err(err).Str("rubric", name).Msg("could not load rubric, falling back to default")
		return s.LoadOrDefault(ctx, DefaultName)
	}
	s.log.Warn().Err(err).Msg("could not load default rubric, using built-in")
	return s.fallback, nil
}

// List returns the valid rubrics marked current. Duplicate names get the
// filename appended and the sample rubric is always present.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	keys, err := s.src.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("list rubrics: %w", err)
	}
	sort.Strings(keys)

	var out []Summary
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		stem := strings.TrimSuffix(path.Base(key), ".json")
		r, err := s.Load(ctx, strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), ".json"))
		if err != nil {
			s.log.Debug().Err(err).Str("key", key).Msg("skipping rubric")
			continue
		}
		if r.Status != StatusCurrent {
			continue
		}
		name := r.Name
		if name == "" {
			name = stem
		}
		desc := r.Description
		if desc == "" {
			desc = "No description available"
		}
		out = append(out, Summary{Filename: stem, Name: name, Description: desc})
	}

	seen := map[string]bool{}
	for i := range out {
		if seen[out[i].Name] {
			out[i].Name = fmt.Sprintf("%s (%s)", out[i].Name, out[i].Filename)
		}
		seen[out[i].Name] = true
	}

	hasSample := false
	for _, r := range out {
		if r.Filename == SampleName {
			hasSample = true
			break
		}
	}
	if !hasSample {
		out = append([]Summary{{Filename: SampleName, Name: "Sample Rubric", Description: "Built-in sample rubric"}}, out...)
	}
	return out, nil
}
