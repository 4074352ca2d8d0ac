package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// ProbeRecord persists one probe outcome. The top-level probe of an
// executable uses an empty Prefix and carries the flag set and serialized
// tree; deeper contextual probes carry positionals only. Empty records a
// probe that ran but produced nothing usable, so later sessions skip it
// too.
type ProbeRecord struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Executable  string `gorm:"uniqueIndex:idx_exe_prefix,priority:1"`
	Prefix      string `gorm:"uniqueIndex:idx_exe_prefix,priority:2"`
	Flags       string
	Positionals string
	Tree        string
	Empty       bool
}

// Store keeps probe metadata across shell sessions in a sqlite database.
type Store struct {
	db *gorm.DB
}

// OpenStore opens (or creates) the metadata database at dbFilePath.
// The PRAGMA settings follow the same NFS-tolerant profile as the shell's
// other sqlite files: busy timeout for network latency, NORMAL sync,
// in-memory temp storage.
func OpenStore(dbFilePath string) (*Store, error) {
	connectionString := fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(1)&_pragma=temp_store(2)",
		dbFilePath,
	)

	db, err := gorm.Open(sqlite.Open(connectionString), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	if err := db.AutoMigrate(&ProbeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate metadata store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serializes writes anyway, so one connection is enough.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveTopLevel upserts the top-level metadata for an executable.
func (s *Store) SaveTopLevel(executable string, meta Metadata, empty bool) error {
	tree := map[string][]string{}
	if meta.Tree != nil {
		tree = meta.Tree.Nodes()
	}
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return err
	}

	record := ProbeRecord{
		Executable:  executable,
		Prefix:      "",
		Flags:       strings.Join(meta.Flags, "\n"),
		Positionals: strings.Join(meta.Positionals, "\n"),
		Tree:        string(treeJSON),
		Empty:       empty,
	}
	return s.upsert(&record)
}

// LoadTopLevel fetches the top-level metadata for an executable. The
// second result reports whether the stored probe was empty; the third
// whether a record exists at all.
func (s *Store) LoadTopLevel(executable string) (Metadata, bool, bool) {
	var record ProbeRecord
	result := s.db.Where("executable = ? AND prefix = ?", executable, "").First(&record)
	if result.Error != nil {
		return Metadata{}, false, false
	}

	meta := Metadata{
		Flags:       splitLines(record.Flags),
		Positionals: splitLines(record.Positionals),
		Tree:        NewPositionalTree(),
	}
	if record.Tree != "" {
		var nodes map[string][]string
		if err := json.Unmarshal([]byte(record.Tree), &nodes); err == nil {
			for key, words := range nodes {
				meta.Tree.SetKey(key, words)
			}
		}
	}
	return meta, record.Empty, true
}

// SavePrefix upserts the candidates for one contextual prefix.
func (s *Store) SavePrefix(executable, prefix string, words []string) error {
	record := ProbeRecord{
		Executable:  executable,
		Prefix:      prefix,
		Positionals: strings.Join(words, "\n"),
		Empty:       len(words) == 0,
	}
	return s.upsert(&record)
}

// LoadPrefix fetches the candidates stored for one contextual prefix.
func (s *Store) LoadPrefix(executable, prefix string) ([]string, bool) {
	if prefix == "" {
		return nil, false
	}
	var record ProbeRecord
	result := s.db.Where("executable = ? AND prefix = ?", executable, prefix).First(&record)
	if result.Error != nil {
		return nil, false
	}
	return splitLines(record.Positionals), true
}

// Stats returns the number of stored probes and the oldest record time.
func (s *Store) Stats() (int64, time.Time, error) {
	var count int64
	if err := s.db.Model(&ProbeRecord{}).Count(&count).Error; err != nil {
		return 0, time.Time{}, err
	}
	var oldest ProbeRecord
	if count > 0 {
		if err := s.db.Order("created_at asc").First(&oldest).Error; err != nil {
			return count, time.Time{}, err
		}
	}
	return count, oldest.CreatedAt, nil
}

// Clear drops every stored probe.
func (s *Store) Clear() error {
	return s.db.Exec("DELETE FROM probe_records").Error
}

func (s *Store) upsert(record *ProbeRecord) error {
	var existing ProbeRecord
	result := s.db.Where("executable = ? AND prefix = ?", record.Executable, record.Prefix).First(&existing)
	if result.Error == nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		return s.db.Save(record).Error
	}
	return s.db.Create(record).Error
}

func splitLines(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, "\n")
}
