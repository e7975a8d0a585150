package capture

import (
	"bytes"
	"context"
	"os"

	"github.com/viant/afs"
)

// FS is the fixed set of file-access entry points a tracked unit performs its
// I/O through. Every call delegates to the real implementation unchanged.
type FS interface {
	Open(name string) (*os.File, error)
	Create(name string) (*os.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)

	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	AppendFile(name string, data []byte, perm os.FileMode) error

	// Download and Upload accept any URL understood by viant/afs
	// (plain paths, file://, mem://, and registered cloud schemes).
	Download(ctx context.Context, url string) ([]byte, error)
	Upload(ctx context.Context, url string, data []byte) error

	ReadTable(name string) ([][]string, error)
	WriteTable(name string, rows [][]string) error

	ReadArray(name string) ([]float64, error)
	WriteArray(name string, values []float64) error
}

// osFS performs the I/O without recording anything.
type osFS struct {
	fs afs.Service
}

var passthrough FS = osFS{fs: afs.New()}

func (o osFS) Open(name string) (*os.File, error) { return os.Open(name) }

func (o osFS) Create(name string) (*os.File, error) { return os.Create(name) }

func (o osFS) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (o osFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

func (o osFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

func (o osFS) AppendFile(name string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (o osFS) Download(ctx context.Context, url string) ([]byte, error) {
	return o.fs.DownloadWithURL(ctx, url)
}

func (o osFS) Upload(ctx context.Context, url string, data []byte) error {
	return o.fs.Upload(ctx, url, 0o644, bytes.NewReader(data))
}

func (o osFS) ReadTable(name string) ([][]string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return decodeTable(name, data)
}

func (o osFS) WriteTable(name string, rows [][]string) error {
	data, err := encodeTable(name, rows)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

func (o osFS) ReadArray(name string) ([]float64, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return decodeArray(data)
}

func (o osFS) WriteArray(name string, values []float64) error {
	data, err := encodeArray(values)
	if err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

// Session implements FS by recording the path before delegating.

func (s *Session) Open(name string) (*os.File, error) {
	s.RecordRead(name)
	return s.base.Open(name)
}

func (s *Session) Create(name string) (*os.File, error) {
	s.RecordWrite(name)
	return s.base.Create(name)
}

func (s *Session) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	read, write := classifyFlag(flag)
	if read {
		s.RecordRead(name)
	}
	if write {
		s.RecordWrite(name)
	}
	return s.base.OpenFile(name, flag, perm)
}

func (s *Session) ReadFile(name string) ([]byte, error) {
	s.RecordRead(name)
	return s.base.ReadFile(name)
}

func (s *Session) WriteFile(name string, data []byte, perm os.FileMode) error {
	s.RecordWrite(name)
	return s.base.WriteFile(name, data, perm)
}

func (s *Session) AppendFile(name string, data []byte, perm os.FileMode) error {
	s.RecordWrite(name)
	return s.base.AppendFile(name, data, perm)
}

func (s *Session) Download(ctx context.Context, url string) ([]byte, error) {
	s.RecordRead(url)
	return s.base.Download(ctx, url)
}

func (s *Session) Upload(ctx context.Context, url string, data []byte) error {
	s.RecordWrite(url)
	return s.base.Upload(ctx, url, data)
}

func (s *Session) ReadTable(name string) ([][]string, error) {
	s.RecordRead(name)
	return s.base.ReadTable(name)
}

func (s *Session) WriteTable(name string, rows [][]string) error {
	s.RecordWrite(name)
	return s.base.WriteTable(name, rows)
}

func (s *Session) ReadArray(name string) ([]float64, error) {
	s.RecordRead(name)
	return s.base.ReadArray(name)
}

func (s *Session) WriteArray(name string, values []float64) error {
	s.RecordWrite(name)
	return s.base.WriteArray(name, values)
}

// classifyFlag maps open flags onto the read/write sets. Write-only opens
// and opens with append, create or truncate are writes; everything else,
// including a plain read-write open, is a read.
func classifyFlag(flag int) (read, write bool) {
	if flag&(os.O_RDONLY|os.O_WRONLY|os.O_RDWR) == os.O_WRONLY {
		return false, true
	}
	mutating := flag&(os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0
	return !mutating, mutating
}

// Current returns the installed session as an FS, or a passthrough FS that
// records nothing when no session is active.
func Current() FS {
	if s := Active(); s != nil {
		return s
	}
	return passthrough
}

// Package-level entry points route through the installed session.

func Open(name string) (*os.File, error) { return Current().Open(name) }

func Create(name string) (*os.File, error) { return Current().Create(name) }

func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return Current().OpenFile(name, flag, perm)
}

func ReadFile(name string) ([]byte, error) { return Current().ReadFile(name) }

func WriteFile(name string, data []byte, perm os.FileMode) error {
	return Current().WriteFile(name, data, perm)
}

func AppendFile(name string, data []byte, perm os.FileMode) error {
	return Current().AppendFile(name, data, perm)
}

func Download(ctx context.Context, url string) ([]byte, error) {
	return Current().Download(ctx, url)
}

func Upload(ctx context.Context, url string, data []byte) error {
	return Current().Upload(ctx, url, data)
}

func ReadTable(name string) ([][]string, error) { return Current().ReadTable(name) }

func WriteTable(name string, rows [][]string) error { return Current().WriteTable(name, rows) }

func ReadArray(name string) ([]float64, error) { return Current().ReadArray(name) }

func WriteArray(name string, values []float64) error { return Current().WriteArray(name, values) }
