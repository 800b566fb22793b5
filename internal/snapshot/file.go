package snapshot

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
)

// Snapshot file layout: a fixed 32-byte header (magic, version, record count,
// created-at, body size), a JSON array of item records, and an 8-byte footer
// carrying a CRC32 of the body. Writes go to a .tmp file renamed into place.
const (
	fileMagic   uint32 = 0x43534E50 // "CSNP"
	fileVersion uint32 = 1
	headerSize         = 32
	footerSize         = 8
)

type fileHeader struct {
	Magic     uint32
	Version   uint32
	ItemCount uint32
	CreatedAt int64
	BodySize  int64
}

// FileStore persists the snapshot as a single checksummed file.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore creates a FileStore for the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		logger: slog.Default().With("component", "snapshot-file"),
	}
}

// LoadAll reads and verifies the snapshot file. A missing file is an empty
// catalog, not an error.
func (s *FileStore) LoadAll(ctx context.Context) ([]catalog.ItemRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("no snapshot file, starting empty", "path", s.path)
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot file %s: %w", s.path, err)
	}
	if len(data) < headerSize+footerSize {
		return nil, fmt.Errorf("snapshot file %s truncated: %d bytes", s.path, len(data))
	}

	header := fileHeader{
		Magic:     binary.LittleEndian.Uint32(data[0:4]),
		Version:   binary.LittleEndian.Uint32(data[4:8]),
		ItemCount: binary.LittleEndian.Uint32(data[8:12]),
		CreatedAt: int64(binary.LittleEndian.Uint64(data[12:20])),
		BodySize:  int64(binary.LittleEndian.Uint64(data[20:28])),
	}
	if header.Magic != fileMagic {
		return nil, fmt.Errorf("invalid snapshot file %s: bad magic %x", s.path, header.Magic)
	}
	if header.Version != fileVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d in %s", header.Version, s.path)
	}
	bodyEnd := int64(headerSize) + header.BodySize
	if bodyEnd+footerSize > int64(len(data)) {
		return nil, fmt.Errorf("snapshot file %s truncated: header claims %d body bytes", s.path, header.BodySize)
	}
	body := data[headerSize:bodyEnd]
	wantSum := binary.LittleEndian.Uint32(data[bodyEnd : bodyEnd+4])
	if gotSum := crc32.ChecksumIEEE(body); gotSum != wantSum {
		return nil, fmt.Errorf("snapshot file %s checksum mismatch: got %x want %x", s.path, gotSum, wantSum)
	}

	records, err := decodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("snapshot file %s: %w", s.path, err)
	}
	if len(records) != int(header.ItemCount) {
		return nil, fmt.Errorf("snapshot file %s: header claims %d items, body has %d",
			s.path, header.ItemCount, len(records))
	}
	s.logger.Info("snapshot loaded from file", "path", s.path, "items", len(records))
	return records, nil
}

// SaveAll writes the records atomically: serialize to a temp file, sync,
// rename over the target.
func (s *FileStore) SaveAll(ctx context.Context, records []catalog.ItemRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling snapshot records: %w", err)
	}

	buf := make([]byte, headerSize+len(body)+footerSize)
	binary.LittleEndian.PutUint32(buf[0:4], fileMagic)
	binary.LittleEndian.PutUint32(buf[4:8], fileVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(records)))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(time.Now().Unix()))
	binary.LittleEndian.PutUint64(buf[20:28], uint64(len(body)))
	copy(buf[headerSize:], body)
	binary.LittleEndian.PutUint32(buf[headerSize+len(body):], crc32.ChecksumIEEE(body))

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := s.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp snapshot file: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("writing snapshot file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing snapshot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}
	s.logger.Info("snapshot saved to file", "path", s.path, "items", len(records))
	return nil
}
