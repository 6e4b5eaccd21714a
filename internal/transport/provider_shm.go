//go:build !windows

package transport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SharedMemoryProvider maps a /dev/shm-backed file into the process's
// address space. All segment and log-ring state lives in this mapping so
// independent processes observe the same bytes without a broker.
type SharedMemoryProvider struct {
	path string
	file *os.File
	data []byte
	size uint32
}

// SharedMemoryOptions configures shared memory creation/opening.
type SharedMemoryOptions struct {
	Path string
	Size uint32
	// Create requests creation of a new backing file. Creation is
	// exclusive (O_EXCL): the first process to create a segment wins: a
	// second Create on the same path fails with ErrAlreadyExists, and the
	// caller falls back to opening it for joining instead.
	Create bool
}

// ErrAlreadyExists is returned when Create races another creator.
var ErrAlreadyExists = errors.New("transport: shared memory segment already exists")

// DefaultShmRoot returns the base directory under which session and log
// segments are created, preferring /dev/shm and falling back to the OS
// temp directory on platforms without it.
func DefaultShmRoot() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm/horus"
	}
	return filepath.Join(os.TempDir(), "horus")
}

// OpenSharedMemory opens or creates a shared-memory-backed mapping.
func OpenSharedMemory(opts SharedMemoryOptions) (*SharedMemoryProvider, error) {
	if opts.Path == "" {
		return nil, errors.New("transport: shared memory path required")
	}
	path := filepath.Clean(opts.Path)

	var file *os.File
	var err error
	if opts.Create {
		if opts.Size == 0 {
			return nil, errors.New("transport: shared memory size required when creating")
		}
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o700); mkErr != nil {
			return nil, fmt.Errorf("create segment directory: %w", mkErr)
		}
		file, err = os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, os.ErrExist) {
			return nil, ErrAlreadyExists
		}
		if err != nil {
			return nil, fmt.Errorf("create shared memory file: %w", err)
		}
		if truncErr := file.Truncate(int64(opts.Size)); truncErr != nil {
			_ = file.Close()
			_ = os.Remove(path)
			return nil, fmt.Errorf("truncate shared memory file: %w", truncErr)
		}
	} else {
		file, err = os.OpenFile(path, os.O_RDWR, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open shared memory file: %w", err)
		}
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat shared memory file: %w", err)
	}
	if info.Size() == 0 {
		_ = file.Close()
		return nil, errors.New("transport: shared memory file has zero size")
	}
	size := uint32(info.Size())

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap shared memory file: %w", err)
	}

	return &SharedMemoryProvider{path: path, file: file, data: data, size: size}, nil
}

func (s *SharedMemoryProvider) Size() uint32 { return s.size }

func (s *SharedMemoryProvider) ReadAt(offset uint32, dest []byte) error {
	if offset+uint32(len(dest)) > s.size {
		return ErrOutOfBounds
	}
	copy(dest, s.data[offset:offset+uint32(len(dest))])
	return nil
}

func (s *SharedMemoryProvider) WriteAt(offset uint32, src []byte) error {
	if offset+uint32(len(src)) > s.size {
		return ErrOutOfBounds
	}
	copy(s.data[offset:offset+uint32(len(src))], src)
	return nil
}

func (s *SharedMemoryProvider) AtomicLoad32(offset uint32) (uint32, error) {
	ptr, err := s.ptr32At(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32((*uint32)(ptr)), nil
}

func (s *SharedMemoryProvider) AtomicStore32(offset uint32, val uint32) error {
	ptr, err := s.ptr32At(offset)
	if err != nil {
		return err
	}
	atomic.StoreUint32((*uint32)(ptr), val)
	return nil
}

func (s *SharedMemoryProvider) AtomicAdd32(offset uint32, delta uint32) (uint32, error) {
	ptr, err := s.ptr32At(offset)
	if err != nil {
		return 0, err
	}
	return atomic.AddUint32((*uint32)(ptr), delta), nil
}

func (s *SharedMemoryProvider) AtomicCAS32(offset uint32, old, new uint32) (bool, error) {
	ptr, err := s.ptr32At(offset)
	if err != nil {
		return false, err
	}
	return atomic.CompareAndSwapUint32((*uint32)(ptr), old, new), nil
}

func (s *SharedMemoryProvider) AtomicLoad64(offset uint32) (uint64, error) {
	ptr, err := s.ptr64At(offset)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint64((*uint64)(ptr)), nil
}

func (s *SharedMemoryProvider) AtomicStore64(offset uint32, val uint64) error {
	ptr, err := s.ptr64At(offset)
	if err != nil {
		return err
	}
	atomic.StoreUint64((*uint64)(ptr), val)
	return nil
}

func (s *SharedMemoryProvider) Close() error {
	var err error
	if s.data != nil {
		if unmapErr := unix.Munmap(s.data); unmapErr != nil {
			err = unmapErr
		}
		s.data = nil
	}
	if s.file != nil {
		if closeErr := s.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		s.file = nil
	}
	return err
}

func (s *SharedMemoryProvider) ptr32At(offset uint32) (unsafe.Pointer, error) {
	if offset+4 > s.size {
		return nil, ErrOutOfBounds
	}
	if offset%4 != 0 {
		return nil, ErrMisaligned
	}
	return unsafe.Pointer(&s.data[offset]), nil
}

func (s *SharedMemoryProvider) ptr64At(offset uint32) (unsafe.Pointer, error) {
	if offset+8 > s.size {
		return nil, ErrOutOfBounds
	}
	if offset%8 != 0 {
		return nil, ErrMisaligned
	}
	return unsafe.Pointer(&s.data[offset]), nil
}
