package ruleset

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mkarvelas/krino/textnorm"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://github.com/mkarvelas/krino/ruleset/schema.json"

// ErrNotFound is returned by LoadStrict when no resource backs an org_type.
var ErrNotFound = errors.New("ruleset not found")

// LoadError reports a backing resource that exists but is malformed, either
// invalid JSON or a schema violation. It is surfaced to the caller rather
// than silently defaulting to an empty ruleset.
type LoadError struct {
	OrgType string
	Path    string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("ruleset for org_type %q at %s is invalid: %v", e.OrgType, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Store provides rulesets keyed by org_type.
type Store interface {
	// Load returns the ruleset for orgType, an empty ruleset when no
	// resource backs it, or a *LoadError when the resource is malformed.
	Load(orgType string) (*Ruleset, error)

	// Invalidate drops the cache entry for orgType, forcing a reload on
	// the next Load.
	Invalidate(orgType string)

	// InvalidateAll drops every cache entry.
	InvalidateAll()
}

// FileStore loads rulesets from <dir>/<org_type>_v1.json and memoizes them
// for the process lifetime. Safe for concurrent use: the check-then-populate
// path is double-checked under a write lock, so two near-simultaneous first
// loads of one org_type read the file once and cache one state.
type FileStore struct {
	dir    string
	schema *jsonschema.Schema
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*Ruleset
}

// NewFileStore creates a FileStore over dir. The embedded ruleset schema is
// compiled once here.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal ruleset schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add ruleset schema resource: %w", err)
	}

	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile ruleset schema: %w", err)
	}

	return &FileStore{
		dir:    dir,
		schema: schema,
		logger: logger,
		cache:  make(map[string]*Ruleset),
	}, nil
}

// Path returns the backing resource path for orgType.
func (s *FileStore) Path(orgType string) string {
	return filepath.Join(s.dir, textnorm.NormalizeKey(orgType)+"_v1.json")
}

// Load implements Store.
func (s *FileStore) Load(orgType string) (*Ruleset, error) {
	key := textnorm.NormalizeKey(orgType)

	s.mu.RLock()
	rs, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return rs, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another request may have populated the entry while we waited.
	if rs, ok := s.cache[key]; ok {
		return rs, nil
	}

	rs, err := s.read(key)
	if errors.Is(err, os.ErrNotExist) {
		// Absent resource is not an error: decisions degrade to UNKNOWN.
		s.logger.Debug("no ruleset resource, caching empty ruleset", "org_type", key)
		rs = Empty(key)
	} else if err != nil {
		return nil, err
	}

	s.cache[key] = rs
	s.logger.Info("ruleset loaded", "org_type", key, "rules", len(rs.Rules), "version", rs.Version)
	return rs, nil
}

// LoadStrict is the non-graceful loader variant: an absent resource returns
// ErrNotFound instead of an empty ruleset. It shares the cache with Load.
func (s *FileStore) LoadStrict(orgType string) (*Ruleset, error) {
	rs, err := s.Load(orgType)
	if err != nil {
		return nil, err
	}
	if len(rs.Rules) == 0 {
		if _, statErr := os.Stat(s.Path(orgType)); errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w for org_type %q", ErrNotFound, textnorm.NormalizeKey(orgType))
		}
	}
	return rs, nil
}

// read parses and validates a single ruleset resource. key must already be
// normalized.
func (s *FileStore) read(key string) (*Ruleset, error) {
	path := filepath.Join(s.dir, key+"_v1.json")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, &LoadError{OrgType: key, Path: path, Err: err}
	}
	if err := s.schema.Validate(doc); err != nil {
		return nil, &LoadError{OrgType: key, Path: path, Err: err}
	}

	var rs Ruleset
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, &LoadError{OrgType: key, Path: path, Err: err}
	}

	rs.precompute()
	return &rs, nil
}

// Invalidate implements Store.
func (s *FileStore) Invalidate(orgType string) {
	key := textnorm.NormalizeKey(orgType)

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	s.logger.Info("ruleset cache invalidated", "org_type", key)
}

// InvalidateAll implements Store.
func (s *FileStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string]*Ruleset)
	s.mu.Unlock()

	s.logger.Info("ruleset cache cleared")
}
