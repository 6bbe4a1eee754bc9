package rtss

import "encoding/binary"

// Signature is the multi-character constant 'RTSS' stored little-endian at
// offset 0, so the raw bytes in memory read "SSTR".
const Signature uint32 = 0x52545353

// DefaultRegionName is the mapping RTSS publishes on Windows.
const DefaultRegionName = "RTSSSharedMemoryV2"

// Field describes one u32 value at a fixed byte offset.
type Field struct {
	Name    string
	Offset  int
	Width   int
	Meaning string
}

// Layout is the subset of the RTSS v2 shared memory format needed to
// compute a frame rate. Entry offsets are relative to the entry base.
type Layout struct {
	Version string

	Signature   Field
	EntrySize   Field
	ArrayOffset Field
	ArrayCount  Field
	ProcessID   Field
	Time0       Field
	Time1       Field
	FrameCount  Field
}

// LayoutV2 matches RTSSSharedMemoryV2 as published by RivaTuner 7.x.
var LayoutV2 = Layout{
	Version: "2",

	Signature:   Field{Name: "dwSignature", Offset: 0, Width: 4, Meaning: "tag, must equal Signature"},
	EntrySize:   Field{Name: "dwAppEntrySize", Offset: 8, Width: 4, Meaning: "stride of one app entry"},
	ArrayOffset: Field{Name: "dwAppArrOffset", Offset: 12, Width: 4, Meaning: "offset of the app array from the region base"},
	ArrayCount:  Field{Name: "dwAppArrSize", Offset: 16, Width: 4, Meaning: "number of app entries"},

	ProcessID:  Field{Name: "dwProcessID", Offset: 0, Width: 4, Meaning: "owning process, 0 marks a free slot"},
	Time0:      Field{Name: "dwTime0", Offset: 268, Width: 4, Meaning: "sampling window start, ms"},
	Time1:      Field{Name: "dwTime1", Offset: 272, Width: 4, Meaning: "sampling window end, ms"},
	FrameCount: Field{Name: "dwFrames", Offset: 276, Width: 4, Meaning: "frames rendered within the window"},
}

// minEntrySize is the smallest stride that still covers FrameCount.
func (l Layout) minEntrySize() int {
	return l.FrameCount.Offset + l.FrameCount.Width
}

func (l Layout) headerSize() int {
	return l.ArrayCount.Offset + l.ArrayCount.Width
}

// read returns the u32 for f at base, or false if it does not fit in buf.
func (f Field) read(buf []byte, base int) (uint32, bool) {
	start := base + f.Offset
	if base < 0 || start < 0 || start+f.Width > len(buf) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[start : start+f.Width]), true
}
