package ioscan

import "fmt"

// Malformed reports an I1/I5/I8 violation detected while decoding an RDH
// (base spec §4.2, category "Sanity"). It accompanies a non-nil Tuple
// when offset_to_next still lets the scan recover and continue; a nil
// Tuple means offset_to_next itself couldn't be trusted, so the scan
// ends here same as a Truncated/VersionMismatch.
type Malformed struct {
	Offset int64
	Reason string
}

func (e *Malformed) Error() string {
	return fmt.Sprintf("malformed RDH at offset 0x%x: %s", e.Offset, e.Reason)
}

// Truncated reports a short read mid-packet or mid-payload (base spec
// §4.2, category "Fatal").
type Truncated struct {
	Offset int64
}

func (e *Truncated) Error() string {
	return fmt.Sprintf("truncated stream at offset 0x%x", e.Offset)
}

// VersionMismatch reports an RDH whose header_id differs from the first
// RDH decoded in the run (I2, category "Fatal").
type VersionMismatch struct {
	Expected uint8
	Got      uint8
	Offset   int64
}

func (e *VersionMismatch) Error() string {
	return fmt.Sprintf("rdh version mismatch at offset 0x%x: expected %d, got %d", e.Offset, e.Expected, e.Got)
}
