package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestSuccessResponse_RoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 1_000_000} {
		payload := patterned(size)
		var buf bytes.Buffer
		if err := WriteSuccess(&buf, payload); err != nil {
			t.Fatalf("size=%d: WriteSuccess failed: %v", size, err)
		}
		if !bytes.Equal(buf.Bytes()[:TagSize], TagOK) {
			t.Fatalf("size=%d: tag = %q", size, buf.Bytes()[:TagSize])
		}

		resp, err := ReadResponse(&buf, ReadOptions{})
		if err != nil {
			t.Fatalf("size=%d: ReadResponse failed: %v", size, err)
		}
		if !resp.OK {
			t.Fatalf("size=%d: OK = false", size)
		}
		if !bytes.Equal(resp.Payload, payload) {
			t.Errorf("size=%d: payload mismatch (%d bytes)", size, len(resp.Payload))
		}
		if resp.Err() != nil {
			t.Errorf("size=%d: Err() = %v", size, resp.Err())
		}
	}
}

func TestFailureResponse_Framed(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFailure(&buf, "compute failed: singular matrix"); err != nil {
		t.Fatalf("WriteFailure failed: %v", err)
	}
	raw := buf.Bytes()
	if !bytes.Equal(raw[:TagSize], TagErr) {
		t.Fatalf("tag = %q, want ERR:", raw[:TagSize])
	}
	if got := binary.BigEndian.Uint64(raw[TagSize : TagSize+ResponseLenSize]); got != uint64(len("compute failed: singular matrix")) {
		t.Errorf("message length = %d", got)
	}

	// A trailing frame must not bleed into the message.
	buf.WriteString("OK::garbage")

	resp, err := ReadResponse(&buf, ReadOptions{})
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if resp.OK {
		t.Fatal("OK = true for failure response")
	}
	if resp.Message != "compute failed: singular matrix" {
		t.Errorf("Message = %q", resp.Message)
	}

	var remote *RemoteError
	if !errors.As(resp.Err(), &remote) {
		t.Fatalf("Err() = %T, want *RemoteError", resp.Err())
	}
}

func TestReadResponse_LegacyUnframedError(t *testing.T) {
	resp, err := ReadResponse(bytes.NewReader([]byte("ERR:Не удалось скачать эфемериды")), ReadOptions{LegacyErrors: true})
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if resp.OK {
		t.Fatal("OK = true")
	}
	if resp.Message != "Не удалось скачать эфемериды" {
		t.Errorf("Message = %q", resp.Message)
	}
}

func TestReadResponse_LegacyErrorTruncatedToOneRead(t *testing.T) {
	long := append([]byte("ERR:"), bytes.Repeat([]byte("x"), 3000)...)
	resp, err := ReadResponse(bytes.NewReader(long), ReadOptions{LegacyErrors: true})
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if len(resp.Message) != LegacyTailSize {
		t.Errorf("legacy message length = %d, want %d", len(resp.Message), LegacyTailSize)
	}
}

func TestReadResponse_UnrecognizedTag(t *testing.T) {
	_, err := ReadResponse(bytes.NewReader([]byte("HTTP/1.1 200")), ReadOptions{})
	if !IsKind(err, KindUnrecognizedResponse) {
		t.Fatalf("expected KindUnrecognizedResponse, got %v", err)
	}
}

func TestReadResponse_ERRPrefixRequiresLegacyMode(t *testing.T) {
	_, err := ReadResponse(bytes.NewReader([]byte("ERRORsomething")), ReadOptions{})
	if !IsKind(err, KindUnrecognizedResponse) {
		t.Fatalf("expected KindUnrecognizedResponse without legacy mode, got %v", err)
	}
}

func TestReadResponse_ClosedBeforeTag(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("OK")} {
		_, err := ReadResponse(bytes.NewReader(data), ReadOptions{})
		if !IsKind(err, KindConnectionClosed) {
			t.Errorf("data=%q: expected KindConnectionClosed, got %v", data, err)
		}
	}
}

func TestReadResponse_PayloadTooLarge(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSuccess(&buf, patterned(64)); err != nil {
		t.Fatal(err)
	}
	_, err := ReadResponse(&buf, ReadOptions{MaxPayload: 32})
	if !IsKind(err, KindTooLarge) {
		t.Fatalf("expected KindTooLarge, got %v", err)
	}
}

func TestReadResponse_TruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSuccess(&buf, []byte("2025 10 18 12:00:00 1.234 5.678 100.0\n")); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	_, err := ReadResponse(bytes.NewReader(raw[:len(raw)-1]), ReadOptions{})
	if !IsKind(err, KindConnectionClosed) {
		t.Fatalf("expected KindConnectionClosed, got %v", err)
	}
}

func TestWriteFailure_InvalidUTF8Replaced(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFailure(&buf, "bad \xff byte"); err != nil {
		t.Fatal(err)
	}
	resp, err := ReadResponse(&buf, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "bad � byte" {
		t.Errorf("Message = %q", resp.Message)
	}
}
