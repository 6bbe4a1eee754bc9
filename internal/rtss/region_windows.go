//go:build windows

package rtss

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/hwmonitor/bridge/internal/domain"
)

var procOpenFileMappingW = windows.NewLazySystemDLL("kernel32.dll").NewProc("OpenFileMappingW")

type fileMapping struct {
	name   string
	handle windows.Handle
	addr   uintptr
	size   int
}

// OpenRegion opens an existing file mapping published by another process
// and maps a read-only view of all of it.
func OpenRegion(name string) (Region, error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("encode mapping name: %w", err)
	}

	r, _, callErr := procOpenFileMappingW.Call(
		uintptr(windows.FILE_MAP_READ),
		0,
		uintptr(unsafe.Pointer(namePtr)),
	)
	if r == 0 {
		return nil, fmt.Errorf("%w: OpenFileMapping %s: %v", domain.ErrRegionUnavailable, name, callErr)
	}
	handle := windows.Handle(r)

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_READ, 0, 0, 0)
	if err != nil {
		_ = windows.CloseHandle(handle)
		return nil, fmt.Errorf("%w: MapViewOfFile %s: %v", domain.ErrRegionUnavailable, name, err)
	}

	var info windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &info, unsafe.Sizeof(info)); err != nil {
		_ = windows.UnmapViewOfFile(addr)
		_ = windows.CloseHandle(handle)
		return nil, fmt.Errorf("%w: VirtualQuery %s: %v", domain.ErrRegionUnavailable, name, err)
	}

	return &fileMapping{
		name:   name,
		handle: handle,
		addr:   addr,
		size:   int(info.RegionSize),
	}, nil
}

func (m *fileMapping) Name() string { return m.name }

func (m *fileMapping) Bytes() []byte {
	if m.addr == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Add(nil, m.addr)), m.size)
}

func (m *fileMapping) Close() error {
	var firstErr error
	if m.addr != 0 {
		if err := windows.UnmapViewOfFile(m.addr); err != nil {
			firstErr = fmt.Errorf("unmap %s: %w", m.name, err)
		}
		m.addr = 0
	}
	if m.handle != 0 {
		if err := windows.CloseHandle(m.handle); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", m.name, err)
		}
		m.handle = 0
	}
	return firstErr
}
