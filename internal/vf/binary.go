package vf

import (
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// readUint8/readUint16/readUint32/readUint64 read a fixed-width
// little-endian unsigned integer from r. Any error (including io.EOF)
// is reported as ErrUnexpectedEOF, since a primitive read only ever
// happens mid-record or mid-header where end-of-stream is fatal.

func readUint8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("read u8: %w", ErrUnexpectedEOF)
	}
	return buf[0], nil
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("read u16: %w", ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("read u32: %w", ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, xerrors.Errorf("read u64: %w", ErrUnexpectedEOF)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// readByteAtStreamEnd reads a single byte, distinguishing a clean
// end-of-stream (no bytes available at all) from any other error. It is
// used only at fragment-record boundaries: EOF here is the normal
// terminator, not a fatal condition.
func readByteAtStreamEnd(r io.Reader) (b byte, eof bool, err error) {
	var buf [1]byte
	n, err := io.ReadFull(r, buf[:])
	if n == 0 && err == io.EOF {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, xerrors.Errorf("read type byte: %w", ErrUnexpectedEOF)
	}
	return buf[0], false, nil
}

// readString reads a NUL-terminated byte run, capped at maxLen bytes
// (including the terminator). If the cap is reached before a terminator
// is seen, the result is forced NUL-terminated at the cap rather than
// overflowing the caller's expectations.
func readString(r io.Reader, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", nil
	}
	buf := make([]byte, 0, maxLen)
	for {
		b, err := readUint8(r)
		if err != nil {
			return "", err
		}
		if b == 0 {
			break
		}
		buf = append(buf, b)
		if len(buf) >= maxLen {
			break // force termination at the cap
		}
	}
	return string(buf), nil
}

// readLengthField reads a length or offset field whose on-disk width is
// selected by a 2-bit width code: 0 -> u8, 1 -> u16, 2 -> u32, 3 -> u64.
func readLengthField(r io.Reader, widthCode uint8) (uint64, error) {
	switch widthCode {
	case 0:
		v, err := readUint8(r)
		return uint64(v), err
	case 1:
		v, err := readUint16(r)
		return uint64(v), err
	case 2:
		v, err := readUint32(r)
		return uint64(v), err
	default:
		return readUint64(r)
	}
}

func writeUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

func writeUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// widthCodeFor returns the minimum width code (0..3) whose representable
// maximum is >= v.
func widthCodeFor(v uint64) uint8 {
	switch {
	case v <= 0xFF:
		return 0
	case v <= 0xFFFF:
		return 1
	case v <= 0xFFFFFFFF:
		return 2
	default:
		return 3
	}
}

// writeLengthField writes v using the on-disk width selected by widthCode.
func writeLengthField(w io.Writer, widthCode uint8, v uint64) error {
	switch widthCode {
	case 0:
		return writeUint8(w, uint8(v))
	case 1:
		return writeUint16(w, uint16(v))
	case 2:
		return writeUint32(w, uint32(v))
	default:
		return writeUint64(w, v)
	}
}

// writeString writes s followed by a single NUL terminator, with no
// length prefix of its own (callers write the length separately).
func writeString(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}
