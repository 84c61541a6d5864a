package domain

import "context"

// ArtifactStorage keeps backup and export artifacts.
type ArtifactStorage interface {
	Put(ctx context.Context, filename string, data []byte) (url string, err error)
	Get(ctx context.Context, filename string) ([]byte, error)
	Delete(ctx context.Context, filename string) error
	List(ctx context.Context) ([]string, error)
}

// ContentStore reads and writes CMS records of one environment.
type ContentStore interface {
	Count(ctx context.Context, ct ContentType) (int, error)
	// StreamRecords calls fn with consecutive batches of at most batchSize
	// records, ordered by id. Returning an error from fn stops the stream.
	StreamRecords(ctx context.Context, ct ContentType, batchSize int, fn func([]Record) error) error
	Get(ctx context.Context, ct ContentType, id string) (Record, bool, error)
	Upsert(ctx context.Context, ct ContentType, record Record) error
	Ping(ctx context.Context) error
}

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

type Encryptor interface {
	Encrypt(data []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Locker serialises writers. Lock acquires every key or none.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (release func(), err error)
}

// AuthContext is the caller of a job-mutating operation.
type AuthContext interface {
	CurrentUserID() string
	HasPermission(resource, action string) bool
}
