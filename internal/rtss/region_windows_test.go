//go:build windows

package rtss

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"testing"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/hwmonitor/bridge/internal/domain"
)

// publish creates a pagefile-backed named mapping holding buf, the way RTSS
// publishes its region.
func publish(t *testing.T, name string, buf []byte) {
	t.Helper()
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		t.Fatal(err)
	}
	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, 0, uint32(len(buf)), namePtr)
	if err != nil {
		t.Fatalf("CreateFileMapping: %v", err)
	}
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(len(buf)))
	if err != nil {
		_ = windows.CloseHandle(h)
		t.Fatalf("MapViewOfFile: %v", err)
	}
	copy(unsafe.Slice((*byte)(unsafe.Add(nil, addr)), len(buf)), buf)
	t.Cleanup(func() {
		_ = windows.UnmapViewOfFile(addr)
		_ = windows.CloseHandle(h)
	})
}

func TestOpenRegionNamedMapping(t *testing.T) {
	name := fmt.Sprintf("hwmonitor-test-%d", os.Getpid())
	buf := buildRegion(Signature, testEntry{pid: 100, time0: 0, time1: 1000, frames: 60})
	publish(t, name, buf)

	region, err := OpenRegion(name)
	if err != nil {
		t.Fatalf("OpenRegion: %v", err)
	}
	defer region.Close()

	got := region.Bytes()
	if len(got) < len(buf) || !bytes.Equal(got[:len(buf)], buf) {
		t.Fatalf("mapped view does not hold the published bytes")
	}
	if fps, err := Decode(got); err != nil || fps != 60 {
		t.Fatalf("Decode = %d, %v; want 60, nil", fps, err)
	}

	if err := region.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if region.Bytes() != nil {
		t.Error("Bytes after Close should be nil")
	}
}

func TestOpenRegionMissingMapping(t *testing.T) {
	_, err := OpenRegion(fmt.Sprintf("hwmonitor-absent-%d", os.Getpid()))
	if !errors.Is(err, domain.ErrRegionUnavailable) {
		t.Fatalf("err = %v, want ErrRegionUnavailable", err)
	}
}
