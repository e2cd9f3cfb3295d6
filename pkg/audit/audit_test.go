package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndVerify(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)

	require.NoError(t, l.Record(OpVaultCreate, "id-1", "Photos"))
	require.NoError(t, l.Record(OpVaultMount, "id-1", "Photos"))
	require.NoError(t, l.RecordError(OpVaultMountFailed, "id-2", "Tax Docs", "authentication error"))

	n, err := l.VerifyChain()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestEventsNeverContainPasswords(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	require.NoError(t, l.Record(OpVaultCreate, "id-1", "Photos"))

	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &event))
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, OpVaultCreate, event.Operation)
	assert.Equal(t, "id-1", event.VaultID)
	assert.Equal(t, ResultSuccess, event.Result)
	assert.NotEmpty(t, event.Chain.HMAC)
	assert.Equal(t, genesisHash, event.Chain.PrevHash)
}

func TestVerifyDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	require.NoError(t, l.Record(OpVaultCreate, "id-1", "Photos"))
	require.NoError(t, l.Record(OpVaultUnmount, "id-1", "Photos"))

	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Rewrite the vault name inside the first record.
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "Photos", "Videos", 1)
	require.NoError(t, os.WriteFile(files[0], []byte(tampered), 0600))

	n, err := l.VerifyChain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HMAC mismatch")
	assert.Equal(t, 0, n)
}

func TestVerifyDetectsDeletedRecord(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir)
	require.NoError(t, err)
	require.NoError(t, l.Record(OpVaultCreate, "id-1", "Photos"))
	require.NoError(t, l.Record(OpVaultMount, "id-1", "Photos"))
	require.NoError(t, l.Record(OpVaultUnmount, "id-1", "Photos"))

	files, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Drop the middle record.
	f, err := os.Open(files[0])
	require.NoError(t, err)
	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	f.Close()
	require.Len(t, lines, 3)
	require.NoError(t, os.WriteFile(files[0], []byte(lines[0]+"\n"+lines[2]+"\n"), 0600))

	n, err := l.VerifyChain()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sequence gap")
	assert.Equal(t, 1, n)
}

func TestChainResumesAcrossRestarts(t *testing.T) {
	dir := t.TempDir()

	l1, err := NewLogger(dir)
	require.NoError(t, err)
	require.NoError(t, l1.Record(OpVaultCreate, "id-1", "Photos"))

	// A new Logger over the same directory continues the chain instead
	// of restarting at genesis.
	l2, err := NewLogger(dir)
	require.NoError(t, err)
	require.NoError(t, l2.Record(OpVaultMount, "id-1", "Photos"))

	n, err := l2.VerifyChain()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestKeyFilePersistsAndIsPrivate(t *testing.T) {
	dir := t.TempDir()
	_, err := NewLogger(dir)
	require.NoError(t, err)

	keyPath := filepath.Join(dir, keyFileName)
	first, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	require.Len(t, first, 32)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = NewLogger(dir)
	require.NoError(t, err)
	second, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Equal(t, first, second, "key is stable across restarts")
}

func TestVerifyEmptyDirectory(t *testing.T) {
	l, err := NewLogger(t.TempDir())
	require.NoError(t, err)

	n, err := l.VerifyChain()
	require.NoError(t, err)
	assert.Zero(t, n)
}
