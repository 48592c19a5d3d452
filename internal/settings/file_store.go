package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileRecord is the on-disk YAML shape, grounded on the search-path-and-
// yaml.Unmarshal pattern doismellburning-samoyed/src/deviceid.go uses for its
// own on-disk reference data.
type fileRecord struct {
	TXID       uint16 `yaml:"txid"`
	RXID       uint16 `yaml:"rxid"`
	MonoChan   uint8  `yaml:"monochan"`
	PALevel    uint8  `yaml:"palevel"`
	SessionKey uint16 `yaml:"session_key"`
}

// FileStore persists a Record to a single YAML file. It is the default
// Store implementation; it has no base type to extend — just a path and a
// pair of methods.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore backed by the file at path. The file
// need not exist yet: Load returns a zero Record (HasSession() == false)
// in that case, matching first-boot behaviour.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("settings: reading %s: %w", s.path, err)
	}

	var fr fileRecord
	if err := yaml.Unmarshal(data, &fr); err != nil {
		return Record{}, fmt.Errorf("settings: parsing %s: %w", s.path, err)
	}

	return Record{
		TXID:       fr.TXID,
		RXID:       fr.RXID,
		MonoChan:   fr.MonoChan,
		PALevel:    fr.PALevel,
		SessionKey: fr.SessionKey,
	}, nil
}

func (s *FileStore) Save(rec Record) error {
	fr := fileRecord{
		TXID:       rec.TXID,
		RXID:       rec.RXID,
		MonoChan:   rec.MonoChan,
		PALevel:    rec.PALevel,
		SessionKey: rec.SessionKey,
	}

	data, err := yaml.Marshal(fr)
	if err != nil {
		return fmt.Errorf("settings: encoding record: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("settings: writing %s: %w", s.path, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
