// Package persist saves and restores query cache contents.
//
// A snapshot is a self-describing blob: a fixed header naming the codec,
// followed by a zstd-compressed codec payload of all cached (key, entry)
// pairs. Restored entries are marked stale so a warm-started cache serves
// data immediately but refetches on first read.
//
// Snapshots travel through a small BlobStore abstraction with local
// filesystem, S3, and MinIO backends (see the s3 and minio subpackages).
package persist

import (
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes/decodes snapshot payloads.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Msgpack is the default snapshot codec.
type Msgpack struct{}

// Marshal implements Codec.
func (Msgpack) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

// Unmarshal implements Codec.
func (Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Name implements Codec.
func (Msgpack) Name() string { return "msgpack" }

// Default is the codec used when none is specified.
var Default Codec = Msgpack{}

// ByName returns a built-in codec by its stable name.
//
// Snapshot headers store the codec name, so decoding picks the right codec
// regardless of the writer's configuration.
func ByName(name string) (Codec, bool) {
	switch name {
	case "msgpack":
		return Msgpack{}, true
	default:
		return nil, false
	}
}
