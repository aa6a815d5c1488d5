package vf

import "errors"

// ErrUnexpectedEOF signals that a read hit the end of the stream before
// satisfying the requested number of bytes. It aborts the current load.
var ErrUnexpectedEOF = errors.New("fluxfs: unexpected end of stream")

// ErrBadSignature signals that a .vf file does not start with the FluxFS
// signature.
var ErrBadSignature = errors.New("fluxfs: bad signature")

// ErrBadReference signals that a fragment's pathIndex is out of range of
// the external path table.
var ErrBadReference = errors.New("fluxfs: fragment references unknown external path")

// ErrExternalOpenFailed signals that a backing file named in the external
// path table could not be opened for reading.
var ErrExternalOpenFailed = errors.New("fluxfs: failed to open external file")

// ErrTooManyPaths signals an attempt to add a 257th entry to a VF's
// external path table.
var ErrTooManyPaths = errors.New("fluxfs: external path table is full")

// ErrIO signals a runtime read/seek failure against a backing file during
// a served read. The VF itself remains usable afterward.
var ErrIO = errors.New("fluxfs: backing file I/O error")
