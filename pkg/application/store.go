package application

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidConfig indicates required options were missing for the
	// chosen store type.
	ErrInvalidConfig = errors.New("invalid application store config")

	// ErrInvalidStoreType indicates an unknown store type.
	ErrInvalidStoreType = errors.New("invalid application store type")
)

// StoreType selects a Store implementation.
type StoreType string

const (
	// StoreTypeFile keeps applications as JSON files on local disk.
	StoreTypeFile StoreType = "file"

	// StoreTypePostgres keeps applications in a Postgres table.
	StoreTypePostgres StoreType = "postgres"
)

// Store is the durable application history. Get returns (nil, nil) for an
// unknown id; lookups never treat absence as a failure.
type Store interface {
	Put(ctx context.Context, app *Application) error
	Get(ctx context.Context, id string) (*Application, error)
	GetByJob(ctx context.Context, jobID string) (*Application, error)
	List(ctx context.Context) ([]*Application, error)
	Close() error
}

// Options configure store construction.
type Options struct {
	dir         string
	postgresURL string
	timeout     time.Duration
}

// Option mutates Options.
type Option func(*Options)

// WithDir sets the directory for the file store.
func WithDir(dir string) Option {
	return func(o *Options) { o.dir = dir }
}

// WithPostgresURL sets the connection URL for the Postgres store.
func WithPostgresURL(u string) Option {
	return func(o *Options) { o.postgresURL = u }
}

// WithConnectTimeout bounds Postgres connection establishment.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.timeout = d }
}

// NewStore builds a Store of the requested type.
func NewStore(storeType StoreType, opts ...Option) (Store, error) {
	options := &Options{timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(options)
	}

	switch storeType {
	case StoreTypeFile:
		if options.dir == "" {
			return nil, ErrInvalidConfig
		}
		return newFileStore(options.dir)
	case StoreTypePostgres:
		if options.postgresURL == "" {
			return nil, ErrInvalidConfig
		}
		return newPostgresStore(options.postgresURL, options.timeout)
	default:
		return nil, ErrInvalidStoreType
	}
}
