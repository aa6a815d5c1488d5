package vf

import "golang.org/x/xerrors"

// ReadAt copies up to len(buf) bytes starting at logical offset into buf,
// returning the number of bytes actually copied. Requests at or past
// v.Size() return 0 with no error, matching read(2)'s short-read
// semantics. A backing-file I/O failure returns ErrIO and the number of
// bytes copied before the failure.
func (v *VF) ReadAt(buf []byte, offset uint64) (int, error) {
	size := len(buf)
	var bytesRead int
	var fragStart uint64

	for _, entry := range v.entries {
		if size == 0 {
			break
		}
		fragEnd := fragStart + entry.Length
		if offset >= fragStart && offset < fragEnd {
			entryOffset := offset - fragStart
			available := entry.Length - entryOffset
			toCopy := uint64(size)
			if available < toCopy {
				toCopy = available
			}

			switch entry.Kind {
			case KindInline:
				copy(buf[bytesRead:uint64(bytesRead)+toCopy], entry.Data[entryOffset:entryOffset+toCopy])
			case KindExternal:
				f := v.files[entry.PathIndex]
				n, _ := f.ReadAt(buf[bytesRead:uint64(bytesRead)+toCopy], int64(entry.Offset+entryOffset))
				if n < int(toCopy) {
					return bytesRead, xerrors.Errorf("read external fragment: %w", ErrIO)
				}
			}

			bytesRead += int(toCopy)
			size -= int(toCopy)
			offset += toCopy
		}
		fragStart = fragEnd
	}

	return bytesRead, nil
}
