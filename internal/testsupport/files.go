package testsupport

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

const wavHeaderSize = 44

// WriteFile creates path with exactly size bytes. Files large enough to hold
// one get a 16-bit stereo 44.1 kHz RIFF/WAVE header so they look like real
// sources; the remainder is a repeating sample pattern. A size <= 0 writes a
// single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	remaining := size
	if size >= wavHeaderSize {
		if _, err := f.Write(wavHeader(uint32(size - wavHeaderSize))); err != nil {
			t.Fatalf("write header %s: %v", path, err)
		}
		remaining -= wavHeaderSize
	}

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = byte(i % 251)
	}
	for remaining > 0 {
		n := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
}

func wavHeader(dataBytes uint32) []byte {
	const (
		channels      = 2
		sampleRate    = 44100
		bitsPerSample = 16
		blockAlign    = channels * bitsPerSample / 8
	)
	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, 36+dataBytes)
	b.WriteString("WAVEfmt ")
	for _, v := range []any{
		uint32(16), uint16(1), uint16(channels), uint32(sampleRate),
		uint32(sampleRate * blockAlign), uint16(blockAlign), uint16(bitsPerSample),
	} {
		_ = binary.Write(&b, binary.LittleEndian, v)
	}
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, dataBytes)
	return b.Bytes()
}
