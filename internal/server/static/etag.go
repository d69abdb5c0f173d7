package static

import (
	"encoding/binary"
	"fmt"
	"io/fs"

	"github.com/spaolacci/murmur3"
)

// ETag returns a weak validator derived from the path, size and
// modification time of a file.
func ETag(urlPath string, info fs.FileInfo) string {
	h := murmur3.New64()
	h.Write([]byte(urlPath))

	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], uint64(info.Size()))
	binary.LittleEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))
	h.Write(buf[:])

	return fmt.Sprintf(`W/"%016x"`, h.Sum64())
}
