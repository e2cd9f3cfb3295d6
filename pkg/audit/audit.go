// Package audit records vault lifecycle operations as an append-only
// JSONL log with an HMAC chain for tamper detection. Events never
// contain passwords or mount contents; they name the operation, the
// vault it touched, and the outcome.
package audit

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Operation types.
const (
	OpVaultCreate      = "vault.create"
	OpVaultMount       = "vault.mount"
	OpVaultMountFailed = "vault.mount_failed"
	OpVaultUnmount     = "vault.unmount"
	OpVaultRekey       = "vault.rekey"
	OpVaultCompact     = "vault.compact"
	OpManifestAdd      = "manifest.add"
	OpManifestRemove   = "manifest.remove"
)

// Result values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

const (
	keyFileName  = "audit.key"
	metaFileName = "audit.meta"
	genesisHash  = "genesis"
)

// Event is a single audit record.
type Event struct {
	Version   int    `json:"v"`
	ID        string `json:"id"`
	Timestamp string `json:"ts"` // RFC 3339, nanosecond precision
	Operation string `json:"op"`
	VaultID   string `json:"vault_id,omitempty"`
	VaultName string `json:"vault_name,omitempty"`
	Result    string `json:"result"`
	Detail    string `json:"detail,omitempty"` // diagnostic text on error
	Chain     Chain  `json:"chain"`
}

// Chain links an event to its predecessor for tamper detection.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

// chainState is the persisted tail of the chain.
type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// Logger appends audit events to monthly JSONL files in one directory.
type Logger struct {
	dir     string
	hmacKey []byte

	mu       sync.Mutex
	sequence int64
	prevHash string
}

// NewLogger opens (or initializes) the audit directory. The HMAC key is
// derived from a random key file created on first use; the chain resumes
// from the persisted state when present.
func NewLogger(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	key, err := loadOrCreateKey(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}

	// Derive the HMAC key with HKDF-SHA256 so the on-disk key file is
	// never used directly.
	hkdfReader := hkdf.New(sha256.New, key, nil, []byte("vaultctl-audit-v1"))
	hmacKey := make([]byte, 32)
	if _, err := hkdfReader.Read(hmacKey); err != nil {
		return nil, fmt.Errorf("audit: derive HMAC key: %w", err)
	}

	l := &Logger{
		dir:      dir,
		hmacKey:  hmacKey,
		prevHash: genesisHash,
	}
	if err := l.loadChainState(); err != nil {
		// First run or state lost; start a fresh chain.
		l.sequence = 0
		l.prevHash = genesisHash
	}
	return l, nil
}

func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != 32 {
			return nil, fmt.Errorf("audit: key file %s has wrong size %d", path, len(key))
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("audit: read key file: %w", err)
	}

	key = make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("audit: generate key: %w", err)
	}
	if err := os.WriteFile(path, key, 0600); err != nil {
		return nil, fmt.Errorf("audit: write key file: %w", err)
	}
	return key, nil
}

// Record logs a successful operation.
func (l *Logger) Record(op, vaultID, vaultName string) error {
	return l.log(op, vaultID, vaultName, ResultSuccess, "")
}

// RecordError logs a failed operation with its diagnostic text.
func (l *Logger) RecordError(op, vaultID, vaultName, detail string) error {
	return l.log(op, vaultID, vaultName, ResultError, detail)
}

func (l *Logger) log(op, vaultID, vaultName, result, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.checkDiskSpace(); err != nil {
		return err
	}

	event := Event{
		Version:   1,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Operation: op,
		VaultID:   vaultID,
		VaultName: vaultName,
		Result:    result,
		Detail:    detail,
	}

	l.sequence++
	event.Chain.Sequence = l.sequence
	event.Chain.PrevHash = l.prevHash
	event.Chain.HMAC = l.eventHMAC(&event)
	l.prevHash = event.Chain.HMAC

	if err := l.writeEvent(&event); err != nil {
		return err
	}
	return l.saveChainState()
}

// eventHMAC computes the record HMAC over every significant field plus
// the chain position, pipe-delimited for a deterministic byte layout.
func (l *Logger) eventHMAC(event *Event) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s|%s|%d|%s",
		event.Version,
		event.ID,
		event.Timestamp,
		event.Operation,
		event.VaultID,
		event.VaultName,
		event.Result,
		event.Detail,
		event.Chain.Sequence,
		event.Chain.PrevHash,
	)
	mac := hmac.New(sha256.New, l.hmacKey)
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// writeEvent appends the event to the current month's log file.
func (l *Logger) writeEvent(event *Event) error {
	name := time.Now().UTC().Format("2006-01") + ".jsonl"
	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: write event: %w", err)
	}
	return nil
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.dir, metaFileName))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.dir, metaFileName), data, 0600); err != nil {
		return fmt.Errorf("audit: save chain state: %w", err)
	}
	return nil
}
