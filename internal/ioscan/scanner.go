package ioscan

import (
	"io"
	"strings"
	"sync/atomic"

	"github.com/alice-daq/cruscan/internal/rdh"
)

// Tuple is the unit the scanner hands downstream: a decoded RDH, its raw
// payload bytes, and the absolute byte offset the RDH started at.
type Tuple struct {
	RDH     rdh.RDH
	Payload []byte
	Offset  int64
}

// FilterFunc reports whether a decoded RDH should be emitted. A nil
// FilterFunc matches everything.
type FilterFunc func(r rdh.RDH) bool

// Scanner frames the raw CRU byte stream into Tuples and tracks the
// running offset (base spec C2). I2 (version consistency) terminates the
// scan; I1/I5/I8 are reported but recovered from via offset_to_next.
type Scanner struct {
	src          *Source
	Filter       FilterFunc
	SkipPayload  bool // true for pure-RDH-only modes (e.g. `view rdh`, `check sanity`)
	StopFlag     *atomic.Bool
	firstHeader  uint8
	haveFirst    bool
	closed       bool
}

// NewScanner wraps src. Filter and SkipPayload may be set on the returned
// Scanner before the first call to Next.
func NewScanner(src *Source) *Scanner {
	return &Scanner{src: src}
}

// Offset returns the scanner's current absolute byte offset.
func (s *Scanner) Offset() int64 { return s.src.Offset() }

// Next decodes the next RDH/payload pair that passes Filter (if set),
// skipping non-matching packets without materializing their payload
// bytes. It returns io.EOF once the stream ends cleanly on an RDH
// boundary; whether the last page carried the stop bit is not checked.
// A Sanity-category violation (I1/I5/I8) is reported
// alongside a non-nil Tuple and does not stop the scan: the offset
// recovered from offset_to_next is still trustworthy enough to find
// the next RDH, so the caller can accumulate the error and keep going.
// Only *Truncated and *VersionMismatch (and a *Malformed with a nil
// Tuple, meaning offset_to_next itself could not be trusted) end the
// scan.
func (s *Scanner) Next() (*Tuple, error) {
	if s.closed {
		return nil, io.EOF
	}
	for {
		if s.StopFlag != nil && s.StopFlag.Load() {
			s.closed = true
			return nil, io.EOF
		}

		offset := s.src.Offset()
		header, err := s.src.ReadExact(rdh.Size)
		if err == io.EOF {
			s.closed = true
			if !s.haveFirst {
				return nil, &Truncated{Offset: offset}
			}
			return nil, io.EOF
		}
		if err != nil {
			s.closed = true
			return nil, &Truncated{Offset: offset}
		}

		r, perr := rdh.Decode(header)
		var violations []string
		if perr != nil {
			violations = append(violations, perr.Error())
		}
		if reason, bad := rdh.ReservedViolation(header); bad {
			violations = append(violations, reason)
		}

		if !s.haveFirst {
			s.firstHeader = r.HeaderID
			s.haveFirst = true
		} else if r.HeaderID != s.firstHeader {
			s.closed = true
			return nil, &VersionMismatch{Expected: s.firstHeader, Got: r.HeaderID, Offset: offset}
		}

		if int(r.MemorySize) < int(r.HeaderSize) {
			violations = append(violations, "memory_size < header_size")
		}
		if int(r.OffsetToNext) < int(r.MemorySize) {
			violations = append(violations, "offset_to_next < memory_size")
		}

		// offset_to_next is trustworthy only once it clears the 64 bytes
		// already consumed for this header; otherwise the next RDH can't
		// be located and the scan cannot continue.
		recoverable := int(r.OffsetToNext) >= rdh.Size
		if len(violations) > 0 && !recoverable {
			s.closed = true
			return nil, &Malformed{Offset: offset, Reason: strings.Join(violations, "; ")}
		}

		// payloadLen is capped at what offset_to_next leaves room for: the
		// header already consumed exactly rdh.Size physical bytes, and
		// SeekAbsolute below only moves forward, so an over-declared
		// memory_size must not read past where offset_to_next says the
		// next RDH starts.
		payloadLen := int(r.MemorySize) - int(r.HeaderSize)
		if payloadLen < 0 {
			payloadLen = 0
		}
		if maxSafe := int(r.OffsetToNext) - rdh.Size; payloadLen > maxSafe {
			if maxSafe < 0 {
				maxSafe = 0
			}
			payloadLen = maxSafe
		}
		matches := s.Filter == nil || s.Filter(r) || len(violations) > 0

		var payload []byte
		if s.SkipPayload || !matches {
			if err := s.src.SkipBytes(payloadLen); err != nil {
				s.closed = true
				return nil, &Truncated{Offset: offset}
			}
		} else {
			payload, err = s.src.ReadExact(payloadLen)
			if err != nil {
				s.closed = true
				return nil, &Truncated{Offset: offset}
			}
		}

		if err := s.src.SeekAbsolute(offset + int64(r.OffsetToNext)); err != nil {
			s.closed = true
			return nil, &Truncated{Offset: offset}
		}

		if !matches {
			continue
		}
		tup := &Tuple{RDH: r, Payload: payload, Offset: offset}
		if len(violations) > 0 {
			return tup, &Malformed{Offset: offset, Reason: strings.Join(violations, "; ")}
		}
		return tup, nil
	}
}

// RunFilter drives the scanner purely for the filter/output path (base
// spec §4.2, §6): it writes the unmodified header+payload bytes of every
// RDH matching filter to sink, in source order, and never produces
// Tuples for validation. It returns the count of RDHs that matched and
// the total count of RDHs read.
func RunFilter(src *Source, filter FilterFunc, sink io.Writer) (matched int, total int, err error) {
	for {
		offset := src.Offset()
		header, rerr := src.ReadExact(rdh.Size)
		if rerr == io.EOF {
			return matched, total, nil
		}
		if rerr != nil {
			return matched, total, &Truncated{Offset: offset}
		}
		r, perr := rdh.Decode(header)
		if perr != nil {
			return matched, total, &Malformed{Offset: offset, Reason: perr.Error()}
		}
		if int(r.MemorySize) < int(r.HeaderSize) || int(r.OffsetToNext) < int(r.MemorySize) {
			return matched, total, &Malformed{Offset: offset, Reason: "memory_size/offset_to_next invariant violated"}
		}

		payloadLen := int(r.MemorySize) - int(r.HeaderSize)
		payload, perr2 := src.ReadExact(payloadLen)
		if perr2 != nil {
			return matched, total, &Truncated{Offset: offset}
		}

		total++
		if filter == nil || filter(r) {
			matched++
			if sink != nil {
				if _, werr := sink.Write(header); werr != nil {
					return matched, total, werr
				}
				if _, werr := sink.Write(payload); werr != nil {
					return matched, total, werr
				}
			}
		}

		if err := src.SeekAbsolute(offset + int64(r.OffsetToNext)); err != nil {
			return matched, total, &Truncated{Offset: offset}
		}
	}
}
