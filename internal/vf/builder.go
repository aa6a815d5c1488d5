package vf

// maxPaths is the capacity of the external path table: pathIndex is a
// uint8, so at most 256 entries can ever be addressed.
const maxPaths = 256

// New constructs an empty VF with the given virtual path, an empty
// external path table, no fragments and size 0.
func New(vpath string) *VF {
	return &VF{vpath: vpath}
}

// AddPath appends filePath to the external path table and returns its
// index. The table is capped at 256 entries; a 257th append returns
// ErrTooManyPaths. Indices returned by AddPath are stable for the VF's
// lifetime.
func (v *VF) AddPath(filePath string) (uint8, error) {
	if len(v.paths) >= maxPaths {
		return 0, ErrTooManyPaths
	}
	idx := uint8(len(v.paths))
	v.paths = append(v.paths, filePath)
	v.files = append(v.files, nil)
	return idx, nil
}

// AddData appends an Inline fragment carrying a private copy of data.
func (v *VF) AddData(data []byte) {
	owned := make([]byte, len(data))
	copy(owned, data)
	v.entries = append(v.entries, Entry{
		Kind:   KindInline,
		Length: uint64(len(owned)),
		Data:   owned,
	})
	v.size += uint64(len(owned))
}

// AddFileOffset appends an External fragment of length bytes starting at
// offset within the file named by external path table entry fileIndex.
// fileIndex must already have been returned by AddPath.
func (v *VF) AddFileOffset(fileIndex uint8, length, offset uint64) error {
	if int(fileIndex) >= len(v.paths) {
		return ErrBadReference
	}
	v.entries = append(v.entries, Entry{
		Kind:      KindExternal,
		Length:    length,
		PathIndex: fileIndex,
		Offset:    offset,
	})
	v.size += length
	return nil
}
