package leb128

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

type corpusEntry struct {
	signed bool
	width  int
	enc    []byte
	value  string
	line   int
}

func findFixturesDir(t *testing.T) string {
	fixturesDir := "_fixtures"
	for depth := 0; depth < 10; depth++ {
		if _, err := os.Stat(fixturesDir); err == nil {
			return fixturesDir
		}
		fixturesDir = filepath.Join("..", fixturesDir)
	}
	t.Fatal("could not find the _fixtures directory")
	return ""
}

// loadCorpus reads one of the _fixtures lists. Lines hold kind+width, the
// encoded bytes in hex and the expected decimal value, or "overflow" for
// encodings that must be rejected.
func loadCorpus(t *testing.T, name string) []corpusEntry {
	f, err := os.Open(filepath.Join(findFixturesDir(t), name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var entries []corpusEntry
	scan := bufio.NewScanner(f)
	for lineno := 1; scan.Scan(); lineno++ {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 || (fields[0][0] != 'u' && fields[0][0] != 's') {
			t.Fatalf("%s:%d: malformed entry", name, lineno)
		}
		width, err := strconv.Atoi(fields[0][1:])
		if err != nil {
			t.Fatalf("%s:%d: bad width: %v", name, lineno, err)
		}
		var enc []byte
		for _, tok := range fields[1 : len(fields)-1] {
			b, err := hex.DecodeString(tok)
			if err != nil {
				t.Fatalf("%s:%d: bad byte %q", name, lineno, tok)
			}
			enc = append(enc, b...)
		}
		entries = append(entries, corpusEntry{
			signed: fields[0][0] == 's',
			width:  width,
			enc:    enc,
			value:  fields[len(fields)-1],
			line:   lineno,
		})
	}
	if err := scan.Err(); err != nil {
		t.Fatal(err)
	}
	return entries
}

func (e corpusEntry) decode(t *testing.T, r io.Reader) (string, error) {
	if e.signed {
		switch e.width {
		case 8:
			n, err := DecodeSigned[int8](r)
			return strconv.FormatInt(int64(n), 10), err
		case 16:
			n, err := DecodeSigned[int16](r)
			return strconv.FormatInt(int64(n), 10), err
		case 32:
			n, err := DecodeSigned[int32](r)
			return strconv.FormatInt(int64(n), 10), err
		case 64:
			n, err := DecodeSigned[int64](r)
			return strconv.FormatInt(n, 10), err
		case 128:
			n, err := DecodeInt128(r)
			return n.String(), err
		}
	} else {
		switch e.width {
		case 8:
			n, err := DecodeUnsigned[uint8](r)
			return strconv.FormatUint(uint64(n), 10), err
		case 16:
			n, err := DecodeUnsigned[uint16](r)
			return strconv.FormatUint(uint64(n), 10), err
		case 32:
			n, err := DecodeUnsigned[uint32](r)
			return strconv.FormatUint(uint64(n), 10), err
		case 64:
			n, err := DecodeUnsigned[uint64](r)
			return strconv.FormatUint(n, 10), err
		case 128:
			n, err := DecodeUint128(r)
			return n.String(), err
		}
	}
	t.Fatalf("%d: unsupported width %d", e.line, e.width)
	return "", nil
}

func (e corpusEntry) reencode(t *testing.T) []byte {
	var buf [MaxLen128]byte
	if e.signed {
		if e.width == 128 {
			n, err := DecodeInt128(bytes.NewReader(e.enc))
			if err != nil {
				t.Fatalf("%d: %v", e.line, err)
			}
			return AppendInt128(buf[:0], n)
		}
		n, err := strconv.ParseInt(e.value, 10, e.width)
		if err != nil {
			t.Fatalf("%d: bad value %q: %v", e.line, e.value, err)
		}
		return AppendSigned(buf[:0], n)
	}
	if e.width == 128 {
		n, err := DecodeUint128(bytes.NewReader(e.enc))
		if err != nil {
			t.Fatalf("%d: %v", e.line, err)
		}
		return AppendUint128(buf[:0], n)
	}
	n, err := strconv.ParseUint(e.value, 10, e.width)
	if err != nil {
		t.Fatalf("%d: bad value %q: %v", e.line, e.value, err)
	}
	return AppendUnsigned(buf[:0], n)
}

func (e corpusEntry) name() string {
	kind := "u"
	if e.signed {
		kind = "s"
	}
	return fmt.Sprintf("%s%d:%d", kind, e.width, e.line)
}

func TestCorpusDecode(t *testing.T) {
	for _, list := range []string{"basic.list", "padded.list"} {
		for _, e := range loadCorpus(t, list) {
			t.Run(e.name(), func(t *testing.T) {
				got, err := e.decode(t, bytes.NewReader(e.enc))
				if err != nil {
					t.Fatalf("decoding %x: %v", e.enc, err)
				}
				if got != e.value {
					t.Errorf("decoding %x: expected %s; but was %s", e.enc, e.value, got)
				}
			})
		}
	}
}

func TestCorpusEncode(t *testing.T) {
	for _, e := range loadCorpus(t, "basic.list") {
		t.Run(e.name(), func(t *testing.T) {
			if enc := e.reencode(t); !bytes.Equal(enc, e.enc) {
				t.Errorf("encoding %s: expected %x; but was %x", e.value, e.enc, enc)
			}
		})
	}
}

func TestCorpusOverflow(t *testing.T) {
	for _, e := range loadCorpus(t, "overflow.list") {
		t.Run(e.name(), func(t *testing.T) {
			if _, err := e.decode(t, bytes.NewReader(e.enc)); !errors.Is(err, ErrOverflow) {
				t.Errorf("decoding %x: expected overflow; but was %v", e.enc, err)
			}
		})
	}
}
