package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	original := Frame{Type: TypeProgress, Payload: []byte(`{"files_scanned":42}`)}
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatal(err)
	}
	decoded, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Type != original.Type {
		t.Errorf("type mismatch: got %v want %v", decoded.Type, original.Type)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("payload mismatch: got %q want %q", decoded.Payload, original.Payload)
	}
}

func TestFrameRoundTripEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, Frame{Type: TypeLog, Payload: nil}); err != nil {
		t.Fatal(err)
	}
	decoded, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Type != TypeLog || len(decoded.Payload) != 0 {
		t.Errorf("expected empty Log frame, got %+v", decoded)
	}
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 5)
	header[0], header[1], header[2], header[3] = 0xFF, 0xFF, 0xFF, 0xFF
	header[4] = byte(TypeCommand)
	buf.Write(header)
	if _, err := ReadFrame(&buf); err == nil {
		t.Error("expected rejection of an oversized declared length")
	}
}

func TestMultipleFramesSequentially(t *testing.T) {
	var buf bytes.Buffer
	frames := []Frame{
		{Type: TypeCommand, Payload: []byte("a")},
		{Type: TypeProgress, Payload: []byte("bb")},
		{Type: TypeResult, Payload: []byte("ccc")},
	}
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range frames {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if got.Type != want.Type || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("got %+v want %+v", got, want)
		}
	}
}

func TestCodecMarshalUnmarshalCommand(t *testing.T) {
	c := Codec{Encoding: EncodingTextual}
	cmd := Command{RootPath: "/data", Algorithm: "sha256", Parallelism: 4}
	b, err := c.Marshal(cmd)
	if err != nil {
		t.Fatal(err)
	}
	var decoded Command
	if err := c.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.RootPath != cmd.RootPath || decoded.Algorithm != cmd.Algorithm || decoded.Parallelism != cmd.Parallelism {
		t.Errorf("got %+v want %+v", decoded, cmd)
	}
}

func TestWrapWriterReaderRoundTripWithCompression(t *testing.T) {
	c := Codec{Compression: true}
	var buf bytes.Buffer
	w, err := c.WrapWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility, repeated for compressibility")
	if _, err := w.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := c.WrapReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(payload))
	if _, err := readFull(r, got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("decompressed payload mismatch")
	}
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total >= len(buf) {
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}
