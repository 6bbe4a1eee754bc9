//go:build unix

package rtss

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/hwmonitor/bridge/internal/domain"
)

// shmDir is where POSIX shared memory objects show up on Linux.
const shmDir = "/dev/shm"

type mmapRegion struct {
	name string
	data []byte
}

// OpenRegion maps a POSIX shared memory object read-only. A bare name is
// looked up under /dev/shm; anything containing a slash is used as a path.
func OpenRegion(name string) (Region, error) {
	path := name
	if filepath.Base(name) == name {
		path = filepath.Join(shmDir, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRegionUnavailable, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrRegionUnavailable, path, err)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrRegionUnavailable, path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %s: %v", domain.ErrRegionUnavailable, path, err)
	}
	return &mmapRegion{name: name, data: data}, nil
}

func (m *mmapRegion) Name() string  { return m.name }
func (m *mmapRegion) Bytes() []byte { return m.data }

func (m *mmapRegion) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if err != nil {
		return fmt.Errorf("munmap %s: %w", m.name, err)
	}
	return nil
}
