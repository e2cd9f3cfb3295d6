package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// VerifyChain replays every log file in sequence order and recomputes
// each record's HMAC. It returns the number of verified events, or an
// error naming the first record that fails: a broken link, a sequence
// gap, or an HMAC mismatch all indicate tampering (or loss).
func (l *Logger) VerifyChain() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return 0, fmt.Errorf("audit: list log files: %w", err)
	}
	sort.Strings(files) // YYYY-MM names sort chronologically

	verified := 0
	prevHash := genesisHash
	var prevSeq int64

	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			return verified, fmt.Errorf("audit: open %s: %w", file, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var event Event
			if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
				f.Close()
				return verified, fmt.Errorf("audit: malformed record in %s: %w", file, err)
			}

			if event.Chain.Sequence != prevSeq+1 {
				f.Close()
				return verified, fmt.Errorf("audit: sequence gap at %d (expected %d)", event.Chain.Sequence, prevSeq+1)
			}
			if event.Chain.PrevHash != prevHash {
				f.Close()
				return verified, fmt.Errorf("audit: broken chain link at sequence %d", event.Chain.Sequence)
			}

			if l.eventHMAC(&event) != event.Chain.HMAC {
				f.Close()
				return verified, fmt.Errorf("audit: HMAC mismatch at sequence %d", event.Chain.Sequence)
			}

			prevHash = event.Chain.HMAC
			prevSeq = event.Chain.Sequence
			verified++
		}
		if err := scanner.Err(); err != nil {
			f.Close()
			return verified, fmt.Errorf("audit: read %s: %w", file, err)
		}
		f.Close()
	}

	return verified, nil
}
