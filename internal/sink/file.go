package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/qcflow/internal/qc"
)

// File appends results as JSON lines. A ".gz" or ".zst" suffix compresses
// the output; "-" writes to stdout.
type File struct {
	mu     sync.Mutex
	path   string
	out    io.WriteCloser
	comp   io.WriteCloser
	buf    *bufio.Writer
	closed bool
}

// NewFile opens path for appending.
func NewFile(path string) (*File, error) {
	var out io.WriteCloser
	if path == "-" {
		out = nopCloser{os.Stdout}
	} else {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open results file: %w", err)
		}
		out = f
	}

	s := &File{path: path, out: out}
	var w io.Writer = out
	switch {
	case strings.HasSuffix(path, ".gz"):
		s.comp = gzip.NewWriter(out)
		w = s.comp
	case strings.HasSuffix(path, ".zst"):
		enc, err := zstd.NewWriter(out)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("zstd results file: %w", err)
		}
		s.comp = enc
		w = enc
	}
	s.buf = bufio.NewWriter(w)
	return s, nil
}

// NewWriter writes JSON lines to w, which is not closed.
func NewWriter(w io.Writer) *File {
	return &File{path: "writer", out: nopCloser{w}, buf: bufio.NewWriter(w)}
}

func (s *File) Write(_ context.Context, res *qc.Result) error {
	data, err := sonic.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("write %s: sink closed", s.path)
	}
	if _, err := s.buf.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}

// Flush pushes buffered lines to the underlying writer.
func (s *File) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Flush()
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.buf.Flush()
	if s.comp != nil {
		if cerr := s.comp.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := s.out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
