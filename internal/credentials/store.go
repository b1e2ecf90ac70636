package credentials

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"go.uber.org/zap"

	"github.com/muurk/wifiportal/internal/fault"
	"github.com/muurk/wifiportal/internal/logging"
)

// DefaultRecordName is the record the store persists to
const DefaultRecordName = "wifi_credentials.txt"

// NoActive is the active index when no credential is selected
const NoActive = -1

// Credential is one known network. SSID is the uniqueness key (exact,
// case-sensitive match).
type Credential struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// Store is the ordered list of known networks. Position 0 is the most
// recently used. It is not safe for concurrent use; the orchestrator only
// touches it from its tick goroutine.
type Store struct {
	storage Storage
	name    string
	creds   []Credential
	active  int
}

// NewStore creates an empty store persisting to the given storage.
// An empty name selects DefaultRecordName.
func NewStore(storage Storage, name string) *Store {
	if name == "" {
		name = DefaultRecordName
	}
	return &Store{
		storage: storage,
		name:    name,
		active:  NoActive,
	}
}

// Load replaces the in-memory list with the persisted records.
// Returns true if at least one record was loaded, in which case the first
// record becomes active.
func (s *Store) Load() bool {
	s.creds = nil
	s.active = NoActive

	data, err := s.storage.ReadFile(s.name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Info("No saved credentials found", zap.String("record", s.name))
		} else {
			logging.Warn("Failed to read saved credentials",
				zap.String("record", s.name),
				zap.Error(err),
			)
		}
		return false
	}

	creds, err := ParseRecords(data)
	if err != nil {
		logging.Warn("Saved credentials are unreadable",
			zap.String("record", s.name),
			zap.Error(err),
		)
		return false
	}

	s.creds = creds
	if len(s.creds) == 0 {
		logging.Info("No valid credentials found in record", zap.String("record", s.name))
		return false
	}

	s.active = 0
	logging.Info("Loaded saved networks",
		zap.Int("count", len(s.creds)),
		zap.String("first_ssid", s.creds[0].SSID),
	)
	return true
}

// Save inserts or updates a credential and promotes it to position 0, which
// also becomes the active index. The full list is then persisted.
//
// A record ValidateRecord refuses, such as an empty SSID or a field holding
// a tab or line break, is rejected with an InvalidInput error and nothing
// changes.
// If persisting fails a PersistenceFailure error is returned but the
// in-memory change is kept: memory and durable state diverge until the next
// successful write.
func (s *Store) Save(ssid, password string) error {
	if err := ValidateRecord(ssid, password); err != nil {
		logging.Warn("Refusing to save credential", zap.String("ssid", ssid), zap.Error(err))
		return err
	}

	if idx := s.indexOf(ssid); idx >= 0 {
		s.creds[idx].Password = password
		if idx != 0 {
			// Rotate [0..idx] right by one so the updated record lands at 0
			// and everything it passed keeps its relative order.
			updated := s.creds[idx]
			copy(s.creds[1:idx+1], s.creds[:idx])
			s.creds[0] = updated
		}
	} else {
		s.creds = append([]Credential{{SSID: ssid, Password: password}}, s.creds...)
	}
	s.active = 0

	if err := s.persist(); err != nil {
		logging.Warn("Failed to persist credentials",
			zap.String("ssid", ssid),
			zap.Error(err),
		)
		return fault.Wrap(fault.PersistenceFailure, "credentials.save", err)
	}

	logging.Info("Saved network", zap.String("ssid", ssid), zap.Int("count", len(s.creds)))
	return nil
}

// Clear removes every credential and the persisted record. The in-memory
// list is always emptied; the returned error only reports the removal.
func (s *Store) Clear() error {
	logging.Info("Clearing all credentials")
	s.creds = nil
	s.active = NoActive

	if err := s.storage.Remove(s.name); err != nil {
		return fault.Wrap(fault.PersistenceFailure, "credentials.clear", err)
	}
	return nil
}

// SetActive selects the credential at index. An out-of-range index clears
// the selection and returns false.
func (s *Store) SetActive(index int) bool {
	if index < 0 || index >= len(s.creds) {
		s.active = NoActive
		return false
	}
	s.active = index
	return true
}

// Get returns the credential at index
func (s *Store) Get(index int) (Credential, bool) {
	if index < 0 || index >= len(s.creds) {
		return Credential{}, false
	}
	return s.creds[index], true
}

// Active returns the active credential, if any
func (s *Store) Active() (Credential, bool) {
	return s.Get(s.active)
}

// ActiveIndex returns the active index or NoActive
func (s *Store) ActiveIndex() int {
	return s.active
}

// Count returns the number of stored credentials
func (s *Store) Count() int {
	return len(s.creds)
}

// IsEmpty reports whether no credentials are stored
func (s *Store) IsEmpty() bool {
	return len(s.creds) == 0
}

// All returns a copy of the stored credentials in order
func (s *Store) All() []Credential {
	return append([]Credential(nil), s.creds...)
}

// Print writes a human-readable listing, passwords included
func (s *Store) Print(w io.Writer) {
	if len(s.creds) == 0 {
		fmt.Fprintln(w, "No credentials stored")
		return
	}

	for i, c := range s.creds {
		fmt.Fprintf(w, "[%d] SSID: %s\n", i, c.SSID)
		fmt.Fprintf(w, "    Password: %s\n", c.Password)
		if i == s.active {
			fmt.Fprintln(w, "    [ACTIVE]")
		}
	}
}

func (s *Store) persist() error {
	return s.storage.WriteFile(s.name, EncodeRecords(s.creds))
}

func (s *Store) indexOf(ssid string) int {
	for i, c := range s.creds {
		if c.SSID == ssid {
			return i
		}
	}
	return -1
}
