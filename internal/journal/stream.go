package journal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("journal: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// fileSink owns a buffered journal file; the encoders write through it.
type fileSink struct {
	f   *os.File
	buf *bufio.Writer
}

func createFile(path string) (fileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fileSink{}, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fileSink{}, err
	}
	return fileSink{f: f, buf: bufio.NewWriter(f)}, nil
}

func (s fileSink) close() error {
	flushErr := s.buf.Flush()
	closeErr := s.f.Close()
	return errors.Join(flushErr, closeErr)
}

type msgpackSink struct {
	fileSink
	enc *msgpack.Encoder
}

func newMsgpackSink(path string) (*msgpackSink, error) {
	fs, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &msgpackSink{fileSink: fs, enc: msgpack.NewEncoder(fs.buf)}, nil
}

func (s *msgpackSink) write(rec *Record) error {
	return s.enc.Encode(rec)
}

type cborSink struct {
	fileSink
	enc *cbor.Encoder
}

func newCBORSink(path string) (*cborSink, error) {
	fs, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &cborSink{fileSink: fs, enc: cborEncMode.NewEncoder(fs.buf)}, nil
}

func (s *cborSink) write(rec *Record) error {
	return s.enc.Encode(rec)
}

type streamDecoder interface {
	Decode(v any) error
}

func readStream(path string, newDecoder func(io.Reader) streamDecoder) (records []Record, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	dec := newDecoder(bufio.NewReader(f))
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return nil, fmt.Errorf("%s: record %d: %w", path, len(records), err)
		}
		if rec.Schema != Schema {
			return nil, fmt.Errorf("%s: record %d: unsupported schema %d", path, len(records), rec.Schema)
		}
		records = append(records, rec)
	}
}

func readMsgpack(path string) ([]Record, error) {
	return readStream(path, func(r io.Reader) streamDecoder {
		return msgpack.NewDecoder(r)
	})
}

func readCBOR(path string) ([]Record, error) {
	return readStream(path, func(r io.Reader) streamDecoder {
		return cbor.NewDecoder(r)
	})
}
