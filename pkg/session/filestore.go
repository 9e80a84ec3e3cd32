package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const fileLogPrefix = "session:filestore"

const recordSuffix = ".session.json"

// fileStore keeps one JSON record per identity under a directory. Writes are
// temp-then-rename so concurrent readers never see a partial record.
type fileStore struct {
	dir string
}

func newFileStore(dir string) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%s - create session dir %s: %w", fileLogPrefix, dir, err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(username string) string {
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, username)
	return filepath.Join(s.dir, safe+recordSuffix)
}

func (s *fileStore) Get(ctx context.Context, username string) (*Record, error) {
	data, err := os.ReadFile(s.path(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s - read record for %s: %w", fileLogPrefix, username, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		// A corrupt record is a miss: the caller falls through to a
		// network login and overwrites it.
		slog.Warn(fmt.Sprintf("%s - malformed record for %s, treating as miss: %v", fileLogPrefix, username, err))
		return nil, nil
	}
	return &record, nil
}

func (s *fileStore) Put(ctx context.Context, record *Record) error {
	if record == nil || record.Username == "" {
		return fmt.Errorf("%s - record requires a username", fileLogPrefix)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%s - marshal record: %w", fileLogPrefix, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("%s - create temp file: %w", fileLogPrefix, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s - write record: %w", fileLogPrefix, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s - close temp file: %w", fileLogPrefix, err)
	}
	if err := os.Rename(tmpName, s.path(record.Username)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s - rename into place: %w", fileLogPrefix, err)
	}
	return nil
}

func (s *fileStore) Delete(ctx context.Context, username string) error {
	err := os.Remove(s.path(username))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s - delete record for %s: %w", fileLogPrefix, username, err)
	}
	return nil
}

func (s *fileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%s - read session dir: %w", fileLogPrefix, err)
	}
	var usernames []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordSuffix) {
			continue
		}
		usernames = append(usernames, strings.TrimSuffix(entry.Name(), recordSuffix))
	}
	return usernames, nil
}

func (s *fileStore) Close() error { return nil }
