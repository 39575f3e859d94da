package cursor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/cfnotifier/cfnotifier/internal/types"
)

// Cursor maps a zone id to the timestamp of the newest delivered event
type Cursor map[string]time.Time

// Advance moves the zone's watermark to ts if ts is newer. It reports whether
// the cursor changed; a cursor never moves backward.
func (c Cursor) Advance(zoneID string, ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	if cur, ok := c[zoneID]; ok && !ts.After(cur) {
		return false
	}
	c[zoneID] = ts.UTC()
	return true
}

// Clone returns an independent copy of c
func (c Cursor) Clone() Cursor {
	out := make(Cursor, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// stateFile is the on-disk layout
type stateFile struct {
	Zones map[string]string `json:"zones"`
}

// Store persists a Cursor as a JSON file
type Store struct {
	path   string
	logger zerolog.Logger
}

// NewStore creates a store backed by the file at path
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.With().Str("component", "cursor").Logger(),
	}
}

// Path returns the backing file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted cursor. A missing or unreadable file yields an
// empty cursor; entries with unparsable timestamps are dropped.
func (s *Store) Load() Cursor {
	c := make(Cursor)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to read state file, starting fresh")
		}
		return c
	}

	var st stateFile
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Failed to parse state file, starting fresh")
		return c
	}

	for zone, raw := range st.Zones {
		ts, err := types.ParseTimestamp(raw)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("zone", zone).
				Msg("Ignoring unparsable cursor entry")
			continue
		}
		c[zone] = ts
	}

	s.logger.Info().
		Str("path", s.path).
		Int("zones", len(c)).
		Msg("Cursor loaded")
	return c
}

// Save overwrites the state file with c. The write goes to a temp file in the
// same directory and is renamed into place, so readers never see a partial file.
func (s *Store) Save(c Cursor) error {
	st := stateFile{Zones: make(map[string]string, len(c))}
	for zone, ts := range c {
		st.Zones[zone] = types.FormatTimestamp(ts)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
