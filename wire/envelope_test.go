package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"
)

func encodeEnvelope(t *testing.T, units ...FileUnit) []byte {
	t.Helper()
	sources := make([]FileSource, 0, len(units))
	for _, u := range units {
		sources = append(sources, SourceFromUnit(u))
	}
	var buf bytes.Buffer
	if err := WriteEnvelope(&buf, sources...); err != nil {
		t.Fatalf("WriteEnvelope failed: %v", err)
	}
	return buf.Bytes()
}

func TestEnvelope_RoundTrip(t *testing.T) {
	rover := FileUnit{Name: "rover.obs", Content: patterned(1024)}
	base := FileUnit{Name: "base.obs", Content: patterned(2*ChunkSize + 5)}

	data := encodeEnvelope(t, rover, base)
	if got := binary.BigEndian.Uint32(data[:CountSize]); got != 2 {
		t.Fatalf("count prefix = %d, want 2", got)
	}

	units, err := ReadEnvelope(bytes.NewReader(data), 0)
	if err != nil {
		t.Fatalf("ReadEnvelope failed: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("decoded %d units, want 2", len(units))
	}
	for i, want := range []FileUnit{rover, base} {
		if units[i].Name != want.Name {
			t.Errorf("unit %d name = %q, want %q", i, units[i].Name, want.Name)
		}
		if !bytes.Equal(units[i].Content, want.Content) {
			t.Errorf("unit %d content mismatch", i)
		}
	}
}

func TestEnvelopeReader_StreamsToSink(t *testing.T) {
	data := encodeEnvelope(t,
		FileUnit{Name: "a.obs", Content: []byte("aaa")},
		FileUnit{Name: "b.obs", Content: []byte("bbbb")},
		FileUnit{Name: "c.obs", Content: nil},
	)

	er := NewEnvelopeReader(bytes.NewReader(data), 4)
	n, err := er.ReadCount()
	if err != nil {
		t.Fatalf("ReadCount failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}

	sinks := map[string]*bytes.Buffer{}
	for {
		h, err := er.Next(func(h FileHeader) (io.Writer, error) {
			b := &bytes.Buffer{}
			sinks[h.Name] = b
			return b, nil
		})
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if uint64(sinks[h.Name].Len()) != h.Size {
			t.Errorf("%s: sink holds %d bytes, header says %d", h.Name, sinks[h.Name].Len(), h.Size)
		}
	}
	if er.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", er.Remaining())
	}
	if sinks["b.obs"].String() != "bbbb" {
		t.Errorf("b.obs = %q", sinks["b.obs"].String())
	}
}

func TestEnvelopeReader_CountLimits(t *testing.T) {
	tests := []struct {
		name  string
		count uint32
		kind  ErrorKind
	}{
		{"zero units", 0, KindTransfer},
		{"above limit", 9, KindTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prefix [CountSize]byte
			binary.BigEndian.PutUint32(prefix[:], tt.count)
			_, err := NewEnvelopeReader(bytes.NewReader(prefix[:]), 8).ReadCount()
			if !IsKind(err, KindTransfer) {
				t.Fatalf("expected KindTransfer, got %v", err)
			}
			if !IsKind(err, tt.kind) {
				t.Errorf("expected kind %s in chain, got %v", tt.kind, err)
			}
		})
	}
}

func TestEnvelopeReader_NextBeforeCount(t *testing.T) {
	er := NewEnvelopeReader(bytes.NewReader(nil), 2)
	_, err := er.Next(func(FileHeader) (io.Writer, error) { return io.Discard, nil })
	if !IsKind(err, KindTransfer) {
		t.Fatalf("expected KindTransfer, got %v", err)
	}
}

func TestReadEnvelope_TruncatedIsAtomic(t *testing.T) {
	data := encodeEnvelope(t,
		FileUnit{Name: "rover.obs", Content: patterned(300)},
		FileUnit{Name: "base.obs", Content: patterned(300)},
	)
	for _, cut := range []int{2, 10, len(data) / 2, len(data) - 1} {
		units, err := ReadEnvelope(bytes.NewReader(data[:cut]), 0)
		if units != nil {
			t.Errorf("cut=%d: partial envelope returned (%d units)", cut, len(units))
		}
		if !IsKind(err, KindTransfer) || !IsKind(err, KindConnectionClosed) {
			t.Errorf("cut=%d: expected transfer error wrapping closed connection, got %v", cut, err)
		}
	}
}

func TestEnvelopeReader_SinkError(t *testing.T) {
	data := encodeEnvelope(t, FileUnit{Name: "rover.obs", Content: []byte("x")})
	er := NewEnvelopeReader(bytes.NewReader(data), 0)
	if _, err := er.ReadCount(); err != nil {
		t.Fatal(err)
	}
	cause := errors.New("cannot create staging file")
	_, err := er.Next(func(FileHeader) (io.Writer, error) { return nil, cause })
	if !IsKind(err, KindTransfer) || !errors.Is(err, cause) {
		t.Fatalf("expected transfer error wrapping sink failure, got %v", err)
	}
}

func TestWriteEnvelope_ShortSource(t *testing.T) {
	var buf bytes.Buffer
	err := WriteEnvelope(&buf, FileSource{Name: "rover.obs", Size: 10, Reader: strings.NewReader("short")})
	if err == nil {
		t.Fatal("expected error for source shorter than declared size")
	}
	if !strings.Contains(err.Error(), "rover.obs") {
		t.Errorf("error does not name the source: %v", err)
	}
}
