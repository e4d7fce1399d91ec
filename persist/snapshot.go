package persist

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/qsync/cache"
	"github.com/hupe1980/qsync/keyset"
)

// Snapshot header: magic, format version, codec name. The payload after
// the header is zstd-compressed codec output. Changing the payload layout
// requires a version bump.
const (
	snapshotMagic   = "QSNP"
	snapshotVersion = uint8(1)
)

type snapshotEntry struct {
	Segments []keyset.Segment `msgpack:"segments"`
	Entry    cache.Entry      `msgpack:"entry"`
}

// Restorer is the cache surface needed to restore a snapshot. Restored
// keys are marked stale so the first read after warm start refetches.
type Restorer interface {
	Set(key keyset.Key, e cache.Entry)
	MarkStale(key keyset.Key)
}

// Snapshot serializes the full contents of the store.
func Snapshot(store cache.Store, c Codec) ([]byte, error) {
	if c == nil {
		c = Default
	}

	all := store.All(func(keyset.Key) bool { return true })
	entries := make([]snapshotEntry, len(all))
	for i, kv := range all {
		entries[i] = snapshotEntry{
			Segments: kv.Key.Segments(),
			Entry:    kv.Entry,
		}
	}

	payload, err := c.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("persist: encode snapshot: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	buf.WriteByte(snapshotVersion)
	name := c.Name()
	if len(name) > 255 {
		return nil, fmt.Errorf("persist: codec name too long: %q", name)
	}
	buf.WriteByte(uint8(len(name)))
	buf.WriteString(name)

	var size [8]byte
	binary.LittleEndian.PutUint64(size[:], uint64(len(payload)))
	buf.Write(size[:])

	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("persist: create compressor: %w", err)
	}
	if _, err := enc.Write(payload); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("persist: compress snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("persist: finish compression: %w", err)
	}

	return buf.Bytes(), nil
}

// Restore repopulates the cache from snapshot data. Every restored key is
// marked stale. Unknown codecs and malformed headers fail without touching
// the cache.
func Restore(r Restorer, data []byte) error {
	payload, c, err := decodeHeader(data)
	if err != nil {
		return err
	}

	var entries []snapshotEntry
	if err := c.Unmarshal(payload, &entries); err != nil {
		return fmt.Errorf("persist: decode snapshot: %w", err)
	}

	for _, se := range entries {
		key := keyset.New(se.Segments...)
		r.Set(key, se.Entry)
		r.MarkStale(key)
	}
	return nil
}

func decodeHeader(data []byte) ([]byte, Codec, error) {
	if len(data) < len(snapshotMagic)+2 {
		return nil, nil, fmt.Errorf("persist: snapshot too short")
	}
	if string(data[:len(snapshotMagic)]) != snapshotMagic {
		return nil, nil, fmt.Errorf("persist: bad snapshot magic")
	}
	off := len(snapshotMagic)

	if v := data[off]; v != snapshotVersion {
		return nil, nil, fmt.Errorf("persist: unsupported snapshot version %d", v)
	}
	off++

	nameLen := int(data[off])
	off++
	if len(data) < off+nameLen+8 {
		return nil, nil, fmt.Errorf("persist: truncated snapshot header")
	}
	name := string(data[off : off+nameLen])
	off += nameLen

	c, ok := ByName(name)
	if !ok {
		return nil, nil, fmt.Errorf("persist: unknown snapshot codec %q", name)
	}

	payloadLen := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8

	dec, err := zstd.NewReader(bytes.NewReader(data[off:]))
	if err != nil {
		return nil, nil, fmt.Errorf("persist: create decompressor: %w", err)
	}
	defer dec.Close()

	payload, err := io.ReadAll(dec)
	if err != nil {
		return nil, nil, fmt.Errorf("persist: decompress snapshot: %w", err)
	}
	if uint64(len(payload)) != payloadLen {
		return nil, nil, fmt.Errorf("persist: payload size mismatch: header %d, got %d", payloadLen, len(payload))
	}

	return payload, c, nil
}
