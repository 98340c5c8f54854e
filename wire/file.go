package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// MaxNameLen is the largest file name accepted on the wire.
const MaxNameLen = 4096

// FileUnit is one transferred file held in memory.
type FileUnit struct {
	Name    string
	Content []byte
}

// FileHeader is the decoded prefix of a file unit: everything except the
// content bytes, which follow on the stream.
type FileHeader struct {
	Name string
	Size uint64
}

// WriteFileHeader writes the name length, name and content length of a unit.
func WriteFileHeader(w io.Writer, name string, size uint64) error {
	buf := make([]byte, NameLenSize+len(name)+ContentLenSize)
	binary.BigEndian.PutUint32(buf[:NameLenSize], uint32(len(name)))
	copy(buf[NameLenSize:], name)
	binary.BigEndian.PutUint64(buf[NameLenSize+len(name):], size)
	return WriteAll(w, buf)
}

// WriteFileUnit encodes u in full.
func WriteFileUnit(w io.Writer, u FileUnit) error {
	if err := WriteFileHeader(w, u.Name, uint64(len(u.Content))); err != nil {
		return err
	}
	return WriteAll(w, u.Content)
}

// ReadFileHeader decodes a unit's name and content length. The content
// itself is left on r for CopyContent.
func ReadFileHeader(r io.Reader) (FileHeader, error) {
	nameLen, err := readUint32(r)
	if err != nil {
		return FileHeader{}, err
	}
	if nameLen > MaxNameLen {
		return FileHeader{}, &Error{
			Kind: KindTooLarge,
			Msg:  fmt.Sprintf("file name length %d exceeds maximum %d", nameLen, MaxNameLen),
		}
	}

	name, err := ReadExact(r, int(nameLen))
	if err != nil {
		return FileHeader{}, err
	}
	if !utf8.Valid(name) {
		return FileHeader{}, &Error{Kind: KindMalformedName, Msg: "file name is not valid UTF-8"}
	}

	size, err := readUint64(r)
	if err != nil {
		return FileHeader{}, err
	}
	return FileHeader{Name: string(name), Size: size}, nil
}

// CopyContent moves exactly size content bytes from r to dst in reads of at
// most ChunkSize, so peak memory stays bounded regardless of file size.
// It returns the number of bytes written to dst.
func CopyContent(dst io.Writer, r io.Reader, size uint64) (int64, error) {
	buf := make([]byte, min(uint64(ChunkSize), size))
	var written uint64
	for written < size {
		n := min(uint64(len(buf)), size-written)
		got, err := io.ReadFull(r, buf[:n])
		if got > 0 {
			if _, werr := dst.Write(buf[:got]); werr != nil {
				return int64(written), fmt.Errorf("write content: %w", werr)
			}
			written += uint64(got)
		}
		if err != nil {
			return int64(written), closedError(
				fmt.Sprintf("read content (%d of %d bytes)", written, size), err)
		}
	}
	return int64(written), nil
}

// ReadFileUnit decodes a whole unit into memory.
func ReadFileUnit(r io.Reader) (FileUnit, error) {
	h, err := ReadFileHeader(r)
	if err != nil {
		return FileUnit{}, err
	}
	var content bytes.Buffer
	if _, err := CopyContent(&content, r, h.Size); err != nil {
		return FileUnit{}, err
	}
	return FileUnit{Name: h.Name, Content: content.Bytes()}, nil
}
