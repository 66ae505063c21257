package ioscan

import (
	"bytes"
	"io"
	"testing"

	"github.com/alice-daq/cruscan/internal/rdh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPacket encodes one RDH followed by a payload of the given size,
// with memory_size/offset_to_next set consistently.
func buildPacket(r rdh.RDH, payload []byte) []byte {
	r.MemorySize = rdh.Size + uint16(len(payload))
	if r.OffsetToNext < r.MemorySize {
		r.OffsetToNext = r.MemorySize
	}
	b := rdh.Encode(r)
	out := append([]byte{}, b[:]...)
	out = append(out, payload...)
	return out
}

func baseRDH() rdh.RDH {
	return rdh.RDH{
		HeaderID:     7,
		HeaderSize:   rdh.Size,
		FeeID:        rdh.BuildFeeID(0, 12),
		SystemID:     rdh.SystemITS,
		LinkID:       3,
		Dataformat:   2,
		StopBit:      1,
		PagesCounter: 0,
	}
}

func TestScannerReadsTuplesInOrder(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildPacket(baseRDH(), []byte("hello")))
	r2 := baseRDH()
	r2.LinkID = 4
	buf.Write(buildPacket(r2, []byte("world!")))

	sc := NewScanner(NewSource(bytes.NewReader(buf.Bytes())))
	t1, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), t1.Payload)
	assert.Equal(t, uint8(3), t1.RDH.LinkID)

	t2, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("world!"), t2.Payload)
	assert.Equal(t, uint8(4), t2.RDH.LinkID)

	_, err = sc.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestScannerTruncatedFirstHeader(t *testing.T) {
	sc := NewScanner(NewSource(bytes.NewReader(make([]byte, 10))))
	_, err := sc.Next()
	var trunc *Truncated
	assert.ErrorAs(t, err, &trunc)
}

func TestScannerVersionMismatch(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildPacket(baseRDH(), nil))
	r2 := baseRDH()
	r2.HeaderID = 6
	buf.Write(buildPacket(r2, nil))

	sc := NewScanner(NewSource(bytes.NewReader(buf.Bytes())))
	_, err := sc.Next()
	require.NoError(t, err)
	_, err = sc.Next()
	var mismatch *VersionMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestScannerFilterSkipsNonMatching(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildPacket(baseRDH(), []byte("a")))
	r2 := baseRDH()
	r2.LinkID = 9
	buf.Write(buildPacket(r2, []byte("b")))

	sc := NewScanner(NewSource(bytes.NewReader(buf.Bytes())))
	sc.Filter = ByLink(9)
	tup, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, uint8(9), tup.RDH.LinkID)
	_, err = sc.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRunFilterCopiesBytesVerbatim(t *testing.T) {
	p1 := buildPacket(baseRDH(), []byte("keep"))
	r2 := baseRDH()
	r2.LinkID = 9
	p2 := buildPacket(r2, []byte("drop"))
	var in bytes.Buffer
	in.Write(p1)
	in.Write(p2)

	var out bytes.Buffer
	matched, total, err := RunFilter(NewSource(bytes.NewReader(in.Bytes())), ByLink(3), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, matched)
	assert.Equal(t, 2, total)
	assert.Equal(t, p1, out.Bytes())
}

func TestScannerReservedByteViolationAccumulatesAndContinues(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(buildPacket(baseRDH(), []byte("a")))

	bad := buildPacket(baseRDH(), []byte("b"))
	bad[15] = 0x01 // reserved subword0 pad (I8)
	buf.Write(bad)

	r3 := baseRDH()
	r3.LinkID = 5
	buf.Write(buildPacket(r3, []byte("c")))

	sc := NewScanner(NewSource(bytes.NewReader(buf.Bytes())))

	t1, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), t1.Payload)

	t2, err := sc.Next()
	var malformed *Malformed
	require.ErrorAs(t, err, &malformed)
	require.NotNil(t, t2)
	assert.Equal(t, []byte("b"), t2.Payload)

	t3, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, uint8(5), t3.RDH.LinkID)
	assert.Equal(t, []byte("c"), t3.Payload)

	_, err = sc.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestScannerOffsetToNextViolationAccumulatesAndContinues(t *testing.T) {
	r1 := baseRDH()
	r1.MemorySize = rdh.Size + 6   // declares 6 bytes of payload
	r1.OffsetToNext = rdh.Size + 1 // I5: offset_to_next(65) < memory_size(70), but still clears the header (>=64)
	h1 := rdh.Encode(r1)

	r2 := baseRDH()
	r2.LinkID = 5
	p2 := []byte("ok")
	r2.MemorySize = rdh.Size + uint16(len(p2))
	r2.OffsetToNext = r2.MemorySize
	h2 := rdh.Encode(r2)

	var buf bytes.Buffer
	buf.Write(h1[:])
	buf.WriteByte(0x00) // filler before the next header, which starts at offset 65 per r1.OffsetToNext
	buf.Write(h2[:])
	buf.Write(p2)

	sc := NewScanner(NewSource(bytes.NewReader(buf.Bytes())))

	t1, err := sc.Next()
	var malformed *Malformed
	require.ErrorAs(t, err, &malformed)
	require.NotNil(t, t1)
	assert.Equal(t, uint8(3), t1.RDH.LinkID)

	t2, err := sc.Next()
	require.NoError(t, err)
	assert.Equal(t, uint8(5), t2.RDH.LinkID)
	assert.Equal(t, p2, t2.Payload)

	_, err = sc.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestScannerUnrecoverableMalformedHeaderTerminatesScan(t *testing.T) {
	r1 := baseRDH()
	r1.MemorySize = rdh.Size
	r1.OffsetToNext = 10 // below rdh.Size: no way to locate the next RDH
	h1 := rdh.Encode(r1)

	sc := NewScanner(NewSource(bytes.NewReader(h1[:])))

	tup, err := sc.Next()
	var malformed *Malformed
	require.ErrorAs(t, err, &malformed)
	assert.Nil(t, tup)

	_, err = sc.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestParseStave(t *testing.T) {
	layer, stave, err := ParseStave("l3_12")
	require.NoError(t, err)
	assert.Equal(t, uint8(3), layer)
	assert.Equal(t, uint8(12), stave)

	_, _, err = ParseStave("bogus")
	assert.Error(t, err)
}
