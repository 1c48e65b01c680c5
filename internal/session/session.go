package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hovde/shellyprov/internal/config"
	"github.com/hovde/shellyprov/internal/provision"
)

const sessionsDir = "sessions"

// Record is the checkpoint entry for a single device. It carries no
// credentials: only identities, the terminal state and diagnostics.
type Record struct {
	SSID         string    `json:"ssid"`
	AssignedName string    `json:"assigned_name"`
	State        string    `json:"state"`
	ErrorDetail  string    `json:"error_detail,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	Firmware     string    `json:"firmware,omitempty"`
	FinalIP      string    `json:"final_ip,omitempty"`
	VerifyNote   string    `json:"verify_note,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Session is the on-disk journal of one provisioning batch. Records are
// appended and flushed after every device so a crash mid-batch loses at
// most the device in flight.
type Session struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	TargetSSID string    `json:"target_ssid"`
	BrokerHost string    `json:"broker_host"`
	BrokerPort int       `json:"broker_port"`
	Records    []Record  `json:"records"`

	mu   sync.Mutex
	path string
}

// New creates a session journal for a batch about to run. The ID doubles
// as the filename stem.
func New(targetSSID, brokerHost string, brokerPort int) *Session {
	now := time.Now()
	return &Session{
		ID:         now.Format("20060102-150405"),
		StartedAt:  now,
		TargetSSID: targetSSID,
		BrokerHost: brokerHost,
		BrokerPort: brokerPort,
	}
}

// Append converts a device outcome into a record and flushes the journal
// to disk. Suitable as the orchestrator's per-device checkpoint hook.
func (s *Session) Append(outcome provision.Outcome) error {
	s.mu.Lock()
	s.Records = append(s.Records, Record{
		SSID:         outcome.Target.Device.SSID,
		AssignedName: outcome.Target.AssignedName,
		State:        outcome.State.String(),
		ErrorDetail:  outcome.ErrorDetail,
		DeviceID:     outcome.DeviceID,
		Firmware:     outcome.FirmwareVersion,
		FinalIP:      outcome.FinalIP,
		VerifyNote:   outcome.VerifyNote,
		FinishedAt:   time.Now(),
	})
	s.mu.Unlock()
	return s.Save()
}

// UpdateVerification rewrites records with the annotations the
// verification stage added, then flushes. Matching is by assigned name.
func (s *Session) UpdateVerification(outcomes []provision.Outcome) error {
	s.mu.Lock()
	byName := make(map[string]provision.Outcome, len(outcomes))
	for _, o := range outcomes {
		byName[o.Target.AssignedName] = o
	}
	for i := range s.Records {
		o, ok := byName[s.Records[i].AssignedName]
		if !ok {
			continue
		}
		s.Records[i].State = o.State.String()
		s.Records[i].VerifyNote = o.VerifyNote
		if o.FinalIP != "" {
			s.Records[i].FinalIP = o.FinalIP
		}
	}
	s.mu.Unlock()
	return s.Save()
}

// Finish stamps the session end time and flushes.
func (s *Session) Finish() error {
	s.mu.Lock()
	s.FinishedAt = time.Now()
	s.mu.Unlock()
	return s.Save()
}

// Save writes the journal to the config directory with an atomic
// temp-file rename, matching how the registry is persisted.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		dir, err := sessionsPath()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create sessions directory: %w", err)
		}
		s.path = filepath.Join(dir, s.ID+".json")
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

// Path returns the journal's on-disk location, or "" before first save.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Load reads a session journal from disk.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	sess.path = path
	return &sess, nil
}

// List returns the paths of saved session journals, newest first.
func List() ([]string, error) {
	dir, err := sessionsPath()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	// Filenames are timestamps, so lexical order is chronological
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

func sessionsPath() (string, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, sessionsDir), nil
}
