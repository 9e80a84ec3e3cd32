package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileLogPrefix = "application:filestore"

const recordSuffix = ".application.json"

// fileStore keeps one JSON file per application under a single directory.
type fileStore struct {
	dir string
}

func newFileStore(dir string) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%s - create dir %s: %w", fileLogPrefix, dir, err)
	}
	return &fileStore{dir: dir}, nil
}

func (s *fileStore) path(id string) string {
	return filepath.Join(s.dir, id+recordSuffix)
}

func (s *fileStore) Put(ctx context.Context, app *Application) error {
	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("%s - marshal application %s: %w", fileLogPrefix, app.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".application-*.tmp")
	if err != nil {
		return fmt.Errorf("%s - create temp file: %w", fileLogPrefix, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%s - write application %s: %w", fileLogPrefix, app.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s - close temp file: %w", fileLogPrefix, err)
	}
	if err := os.Rename(tmpName, s.path(app.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%s - rename into place: %w", fileLogPrefix, err)
	}
	return nil
}

func (s *fileStore) Get(ctx context.Context, id string) (*Application, error) {
	data, err := os.ReadFile(s.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - read application %s: %w", fileLogPrefix, id, err)
	}

	var app Application
	if err := json.Unmarshal(data, &app); err != nil {
		slog.Warn(fmt.Sprintf("%s - malformed application record %s, treating as missing: %v", fileLogPrefix, id, err))
		return nil, nil
	}
	return &app, nil
}

func (s *fileStore) GetByJob(ctx context.Context, jobID string) (*Application, error) {
	apps, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	// Newest first, so the most recent application for the job wins.
	for _, app := range apps {
		if app.JobID == jobID {
			return app, nil
		}
	}
	return nil, nil
}

func (s *fileStore) List(ctx context.Context) ([]*Application, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%s - read dir: %w", fileLogPrefix, err)
	}

	apps := make([]*Application, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordSuffix) {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), recordSuffix)
		app, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if app != nil {
			apps = append(apps, app)
		}
	}

	sort.Slice(apps, func(i, j int) bool {
		return apps[i].AppliedAt.After(apps[j].AppliedAt)
	})
	return apps, nil
}

func (s *fileStore) Close() error { return nil }
