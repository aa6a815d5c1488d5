package vf

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"unicode/utf8"

	"golang.org/x/xerrors"
)

// signature is the fixed 10-byte prefix identifying a valid .vf file.
var signature = [10]byte{'F', 'l', 'u', 'x', 'F', 'S', ' ', 'V', 'F', 0}

func readSignature(r io.Reader) error {
	var buf [10]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return xerrors.Errorf("read signature: %w", ErrUnexpectedEOF)
	}
	if !bytes.Equal(buf[:], signature[:]) {
		return xerrors.Errorf("read signature: %w", ErrBadSignature)
	}
	return nil
}

// readVPath reads the signature and vpath fields shared by every .vf
// file, without touching the external path table or fragment list.
func readVPath(r io.Reader) (string, error) {
	if err := readSignature(r); err != nil {
		return "", err
	}
	vpathLen, err := readUint16(r)
	if err != nil {
		return "", err
	}
	vpath, err := readString(r, int(vpathLen))
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(vpath) {
		log.Printf("fluxfs: vpath %q is not valid UTF-8", vpath)
	}
	return vpath, nil
}

// GetVPath parses only the signature and vpath of the .vf file at
// filePath, without materializing fragments or opening any external
// file. It is the cheap alternative to Load used during namespace
// discovery.
func GetVPath(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return readVPath(f)
}

// GetVFSize loads filePath in full (opening and then immediately closing
// every referenced external file) solely to learn its logical size.
func GetVFSize(filePath string) (uint64, error) {
	v, err := Load(filePath)
	if err != nil {
		return 0, err
	}
	defer v.Close()
	return v.Size(), nil
}

// readFragment reads one fragment record. eof is true when the stream
// ended cleanly before a typeByte could be read (the normal list
// terminator); any other end-of-stream is a fatal, truncated-file error.
func readFragment(r io.Reader, stringCount int) (entry Entry, eof bool, err error) {
	typeByte, eof, err := readByteAtStreamEnd(r)
	if err != nil || eof {
		return Entry{}, eof, err
	}

	kind := Kind(typeByte & 1)
	lengthWidthCode := (typeByte >> 1) & 3
	offsetWidthCode := (typeByte >> 3) & 3
	pathIndexCode := typeByte >> 5

	length, err := readLengthField(r, lengthWidthCode)
	if err != nil {
		return Entry{}, false, err
	}

	if kind == KindInline {
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return Entry{}, false, xerrors.Errorf("read inline data: %w", ErrUnexpectedEOF)
		}
		return Entry{Kind: KindInline, Length: length, Data: data}, false, nil
	}

	offset, err := readLengthField(r, offsetWidthCode)
	if err != nil {
		return Entry{}, false, err
	}
	pathIndex := pathIndexCode
	if pathIndexCode == 7 {
		pathIndex, err = readUint8(r)
		if err != nil {
			return Entry{}, false, err
		}
	}
	if int(pathIndex) >= stringCount {
		return Entry{}, false, ErrBadReference
	}
	return Entry{
		Kind:      KindExternal,
		Length:    length,
		PathIndex: pathIndex,
		Offset:    offset,
	}, false, nil
}

// Load parses the .vf file at filePath in full: header, external path
// table (opening a read handle for every entry, resolved relative to the
// directory containing filePath, not the process's current working
// directory), and the ordered fragment list. On any error, every
// partially-opened resource is released before the error is returned.
func Load(filePath string) (*VF, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vpath, err := readVPath(f)
	if err != nil {
		return nil, err
	}

	stringCount, err := readUint8(f)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(filePath)
	v := &VF{vpath: vpath}
	for i := 0; i < int(stringCount); i++ {
		pathLen, err := readUint16(f)
		if err != nil {
			v.Close()
			return nil, err
		}
		path, err := readString(f, int(pathLen))
		if err != nil {
			v.Close()
			return nil, err
		}
		v.paths = append(v.paths, path)

		resolved := path
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(dir, path)
		}
		ext, err := os.Open(resolved)
		if err != nil {
			v.Close()
			return nil, xerrors.Errorf("open external path %q: %w", resolved, ErrExternalOpenFailed)
		}
		v.files = append(v.files, ext)
	}

	for {
		entry, eof, err := readFragment(f, len(v.paths))
		if err != nil {
			v.Close()
			return nil, err
		}
		if eof {
			break
		}
		v.entries = append(v.entries, entry)
		v.size += entry.Length
	}

	return v, nil
}

// Save serializes v to filePath using spec.md's width-minimal encoding:
// every length, offset and pathIndex field is written in the smallest of
// the available widths that can represent its value.
func Save(v *VF, filePath string) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(signature[:]); err != nil {
		return err
	}
	if err := writeUint16(f, uint16(len(v.vpath)+1)); err != nil {
		return err
	}
	if err := writeString(f, v.vpath); err != nil {
		return err
	}

	if err := writeUint8(f, uint8(len(v.paths))); err != nil {
		return err
	}
	for _, path := range v.paths {
		if err := writeUint16(f, uint16(len(path)+1)); err != nil {
			return err
		}
		if err := writeString(f, path); err != nil {
			return err
		}
	}

	for _, entry := range v.entries {
		if err := writeFragment(f, entry); err != nil {
			return err
		}
	}

	return f.Close()
}

func writeFragment(w io.Writer, entry Entry) error {
	lengthWidthCode := widthCodeFor(entry.Length)

	var offsetWidthCode, pathIndexCode uint8
	if entry.Kind == KindExternal {
		offsetWidthCode = widthCodeFor(entry.Offset)
		if entry.PathIndex > 6 {
			pathIndexCode = 7
		} else {
			pathIndexCode = entry.PathIndex
		}
	}

	typeByte := uint8(entry.Kind) | (lengthWidthCode << 1) | (offsetWidthCode << 3) | (pathIndexCode << 5)
	if err := writeUint8(w, typeByte); err != nil {
		return err
	}
	if err := writeLengthField(w, lengthWidthCode, entry.Length); err != nil {
		return err
	}

	if entry.Kind == KindInline {
		_, err := w.Write(entry.Data)
		return err
	}

	if err := writeLengthField(w, offsetWidthCode, entry.Offset); err != nil {
		return err
	}
	if pathIndexCode == 7 {
		if err := writeUint8(w, entry.PathIndex); err != nil {
			return err
		}
	}
	return nil
}
