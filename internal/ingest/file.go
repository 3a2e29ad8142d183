package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/qcflow/internal/record"
)

const (
	sniffSize     = 512
	readBufSize   = 64 << 10
	maxLineLength = 16 << 20
)

var errLineTooLong = errors.New("line too long")

// FileSource reads JSON-lines record files matching a glob pattern, in
// lexical order. Files may be gzip or zstd compressed; the format is
// detected from content, not the extension.
type FileSource struct {
	files  []string
	next   int
	logger *zap.Logger

	path    string
	line    int
	maxLine int
	file    *os.File
	reader  io.ReadCloser
	lines   *bufio.Reader
	buf     []byte
}

// NewFileSource expands pattern (doublestar syntax, e.g. "data/**/*.jsonl.gz").
func NewFileSource(pattern string, logger *zap.Logger) (*FileSource, error) {
	files, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid source pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}
	sort.Strings(files)

	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{files: files, logger: logger, maxLine: maxLineLength}, nil
}

// Files returns the matched paths
func (s *FileSource) Files() []string {
	return s.files
}

// ReadNext decodes the next non-empty line. A line that does not decode or
// exceeds the line limit is transient, as is a file that cannot be opened;
// an I/O failure while reading is fatal.
func (s *FileSource) ReadNext(ctx context.Context) (*record.Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.lines == nil {
			if s.next >= len(s.files) {
				return nil, io.EOF
			}
			path := s.files[s.next]
			s.next++
			if err := s.open(path); err != nil {
				s.logger.Warn("Skipping record file", zap.String("path", path), zap.Error(err))
				return nil, Transientf("%v", err)
			}
		}

		line, err := s.readLine()
		if errors.Is(err, io.EOF) {
			s.closeCurrent()
			continue
		}
		s.line++
		if errors.Is(err, errLineTooLong) {
			return nil, Transientf("%s:%d: line exceeds %d bytes", s.path, s.line, s.maxLine)
		}
		if err != nil {
			path := s.path
			s.closeCurrent()
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		data := bytes.TrimSpace(line)
		if len(data) == 0 || data[0] == '#' {
			continue
		}
		rec, err := DecodeLine(data)
		if err != nil {
			return nil, Transientf("%s:%d: %v", s.path, s.line, err)
		}
		return rec, nil
	}
}

func (s *FileSource) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	br := bufio.NewReader(f)
	head, err := br.Peek(sniffSize)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		f.Close()
		return fmt.Errorf("read %s: %w", path, err)
	}

	var reader io.ReadCloser
	mtype := mimetype.Detect(head)
	switch {
	case mtype.Is("application/gzip"):
		zr, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return fmt.Errorf("gzip %s: %w", path, err)
		}
		reader = zr
	case mtype.Is("application/zstd"):
		zr, err := zstd.NewReader(br)
		if err != nil {
			f.Close()
			return fmt.Errorf("zstd %s: %w", path, err)
		}
		reader = zr.IOReadCloser()
	default:
		reader = io.NopCloser(br)
	}

	s.path, s.line = path, 0
	s.file, s.reader, s.lines = f, reader, bufio.NewReaderSize(reader, readBufSize)
	s.logger.Debug("Opened record file", zap.String("path", path), zap.String("mime", mtype.String()))
	return nil
}

func (s *FileSource) closeCurrent() {
	if s.reader != nil {
		s.reader.Close()
	}
	if s.file != nil {
		s.file.Close()
	}
	s.file, s.reader, s.lines = nil, nil, nil
}

// readLine returns the next line without its newline. A line longer than
// maxLine is consumed up to its newline and reported as errLineTooLong, so
// reading resumes on the following line. io.EOF is returned only once the
// current file holds no more bytes.
func (s *FileSource) readLine() ([]byte, error) {
	s.buf = s.buf[:0]
	tooLong := false
	read := false
	for {
		frag, err := s.lines.ReadSlice('\n')
		read = read || len(frag) > 0
		frag = bytes.TrimSuffix(frag, []byte{'\n'})
		if !tooLong {
			if len(s.buf)+len(frag) > s.maxLine {
				tooLong = true
				s.buf = s.buf[:0]
			} else {
				s.buf = append(s.buf, frag...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !read {
				return nil, io.EOF
			}
		case err != nil:
			return nil, err
		}
		if tooLong {
			return nil, errLineTooLong
		}
		return s.buf, nil
	}
}

// Close releases the open file, if any. Further reads return io.EOF.
func (s *FileSource) Close() error {
	s.closeCurrent()
	s.next = len(s.files)
	return nil
}
