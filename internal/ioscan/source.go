// Package ioscan implements the input scanner (base spec C2): it frames
// the raw CRU byte stream into (RDH, payload, offset) tuples, enforcing
// the RDH stream invariants as it goes.
package ioscan

import (
	"fmt"
	"io"
)

// Source abstracts a byte stream that may or may not support seeking,
// mirroring the file-vs-stdin split of base spec §6. Files get a real
// io.Seeker; stdin gets SkipBytes implemented as discard-by-read.
type Source struct {
	r      io.Reader
	seeker io.Seeker
	offset int64
}

// NewSource wraps r. If r also implements io.Seeker, seek-based skipping
// is used; otherwise SkipBytes discards by reading.
func NewSource(r io.Reader) *Source {
	s := &Source{r: r}
	if sk, ok := r.(io.Seeker); ok {
		s.seeker = sk
	}
	return s
}

// Seekable reports whether the underlying source supports relative seeks.
func (s *Source) Seekable() bool { return s.seeker != nil }

// Offset returns the current absolute byte offset into the stream.
func (s *Source) Offset() int64 { return s.offset }

// ReadExact reads exactly n bytes, returning io.EOF if the very first
// read hits end-of-stream (clean EOF) or io.ErrUnexpectedEOF for a short
// read partway through (truncation, base spec "TruncatedAt").
func (s *Source) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(s.r, buf)
	s.offset += int64(read)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", n, s.offset-int64(read), err)
	}
	return buf, nil
}

// SkipBytes advances n bytes without materializing them, using
// seek_relative on a seekable source and discard-by-read otherwise.
func (s *Source) SkipBytes(n int) error {
	if n == 0 {
		return nil
	}
	if s.seeker != nil {
		if _, err := s.seeker.Seek(int64(n), io.SeekCurrent); err != nil {
			return fmt.Errorf("seek %d bytes at offset %d: %w", n, s.offset, err)
		}
		s.offset += int64(n)
		return nil
	}
	copied, err := io.CopyN(io.Discard, s.r, int64(n))
	s.offset += copied
	if err != nil {
		return fmt.Errorf("discard %d bytes at offset %d: %w", n, s.offset-copied, err)
	}
	return nil
}

// SeekAbsolute moves forward to an absolute offset via SkipBytes (a seek
// on a seekable source, discard-by-read otherwise); a target behind the
// current offset is an error. Used to reconcile offset_to_next against
// the bytes already consumed.
func (s *Source) SeekAbsolute(target int64) error {
	delta := target - s.offset
	if delta == 0 {
		return nil
	}
	if delta < 0 {
		return fmt.Errorf("cannot move backward from offset %d to %d", s.offset, target)
	}
	return s.SkipBytes(int(delta))
}
