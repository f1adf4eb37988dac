package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmylchreest/soundmode/internal/model"
)

// SchemaVersion is the current persistence schema version.
const SchemaVersion = 1

// Persistence defines the interface for transition storage.
type Persistence interface {
	// Load reads all transitions from storage.
	Load() ([]model.Transition, error)

	// Append adds a transition to storage.
	Append(t model.Transition) error

	// Rewrite replaces the entire storage file (used after trimming).
	Rewrite(ts []model.Transition) error

	// Clear removes all stored transitions.
	Clear() error

	// Close releases file handles and resources.
	Close() error
}

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	SoundmodeSchemaVersion int   `json:"soundmode_schema_version"`
	CreatedAt              int64 `json:"created_at"`
}

// maxLineSize bounds a single JSONL record.
const maxLineSize = 1024 * 1024

// ErrPersistenceClosed is returned when operations are attempted on a closed persistence.
var ErrPersistenceClosed = errors.New("persistence is closed")

// JSONLPersistence implements Persistence using JSONL files.
type JSONLPersistence struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewJSONLPersistence creates a new JSONLPersistence.
// Creates the file if it doesn't exist.
func NewJSONLPersistence(path string) (*JSONLPersistence, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", path, err)
	}

	p := &JSONLPersistence{
		path: path,
		file: file,
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if info.Size() == 0 {
		if err := p.writeHeader(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}

	return p, nil
}

// Path returns the backing file path.
func (p *JSONLPersistence) Path() string {
	return p.path
}

// writeHeader writes the schema version header to the file.
func (p *JSONLPersistence) writeHeader() error {
	header := schemaHeader{
		SoundmodeSchemaVersion: SchemaVersion,
		CreatedAt:              time.Now().Unix(),
	}

	data, err := json.Marshal(header)
	if err != nil {
		return err
	}

	_, err = p.file.Write(append(data, '\n'))
	return err
}

// writeRecords appends transitions without syncing. Caller must hold p.mu.
func (p *JSONLPersistence) writeRecords(ts []model.Transition) error {
	for _, t := range ts {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if _, err := p.file.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// Load reads all transitions from storage. Malformed lines are skipped.
func (p *JSONLPersistence) Load() ([]model.Transition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return nil, ErrPersistenceClosed
	}

	if err := p.followReplacedLocked(); err != nil {
		return nil, err
	}

	if _, err := p.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", p.path, err)
	}

	var transitions []model.Transition
	scanner := bufio.NewScanner(p.file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.SoundmodeSchemaVersion > 0 {
				if header.SoundmodeSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.SoundmodeSchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var t model.Transition
		if err := json.Unmarshal(line, &t); err != nil {
			continue
		}
		if t.ID != "" {
			transitions = append(transitions, t)
		}
	}

	if err := scanner.Err(); err != nil {
		return transitions, fmt.Errorf("error reading file: %w", err)
	}

	// Seek back to end for appending
	if _, err := p.file.Seek(0, io.SeekEnd); err != nil {
		return transitions, err
	}

	return transitions, nil
}

// followReplacedLocked reopens the path when another writer has replaced the
// file, as Rewrite does. Caller must hold p.mu.
func (p *JSONLPersistence) followReplacedLocked() error {
	onDisk, err := os.Stat(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", p.path, err)
	}
	held, err := p.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat open file: %w", err)
	}
	if os.SameFile(onDisk, held) {
		return nil
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to reopen %s: %w", p.path, err)
	}
	_ = p.file.Close()
	p.file = file
	return nil
}

// Append adds a transition to storage.
func (p *JSONLPersistence) Append(t model.Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.file == nil {
		return ErrPersistenceClosed
	}

	if err := p.writeRecords([]model.Transition{t}); err != nil {
		return err
	}
	return p.file.Sync()
}

// Rewrite replaces the entire storage file, keeping a backup until it succeeds.
func (p *JSONLPersistence) Rewrite(ts []model.Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	if err := p.reopenTruncated(); err != nil {
		return err
	}

	if err := p.writeRecords(ts); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return err
	}

	_ = os.Remove(p.path + ".bak")
	return nil
}

// Clear removes all stored transitions.
func (p *JSONLPersistence) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersistenceClosed
	}

	if err := p.reopenTruncated(); err != nil {
		return err
	}
	return p.file.Sync()
}

// reopenTruncated moves the current file to a .bak and starts a new one with
// a fresh header. Caller must hold p.mu.
func (p *JSONLPersistence) reopenTruncated() error {
	if p.file != nil {
		if err := p.file.Close(); err != nil {
			return err
		}
		p.file = nil
	}

	backupPath := p.path + ".bak"
	if err := os.Rename(p.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		_ = os.Rename(backupPath, p.path)
		return fmt.Errorf("failed to create new file: %w", err)
	}
	p.file = file

	return p.writeHeader()
}

// Close releases file handles and resources.
func (p *JSONLPersistence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.file != nil {
		err := p.file.Close()
		p.file = nil
		return err
	}
	return nil
}

// RecoverFromCorruption backs up a damaged file and rewrites only the valid
// transitions it contains.
func RecoverFromCorruption(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}

	var valid []model.Transition
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var header schemaHeader
		if json.Unmarshal(line, &header) == nil && header.SoundmodeSchemaVersion > 0 {
			continue
		}

		var t model.Transition
		if err := json.Unmarshal(line, &t); err == nil && t.ID != "" {
			valid = append(valid, t)
		}
	}
	// A scanner error leaves valid holding whatever was readable
	_ = file.Close()

	backupPath := path + ".corrupted." + time.Now().Format("20060102-150405")
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to backup corrupted file: %w", err)
	}

	p, err := NewJSONLPersistence(path)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.writeRecords(valid); err != nil {
		return err
	}
	return p.file.Sync()
}
