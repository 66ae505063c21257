package ioscan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alice-daq/cruscan/internal/rdh"
)

// ByLink returns a FilterFunc matching a single link_id.
func ByLink(link uint8) FilterFunc {
	return func(r rdh.RDH) bool { return r.LinkID == link }
}

// ByFee returns a FilterFunc matching a single fee_id.
func ByFee(fee uint16) FilterFunc {
	return func(r rdh.RDH) bool { return r.FeeID == fee }
}

// ByStave returns a FilterFunc matching RDHs whose FeeID decodes to the
// given (layer, stave) pair, base spec's "its-stave" filter target.
func ByStave(layer, stave uint8) FilterFunc {
	return func(r rdh.RDH) bool {
		return rdh.Layer(r.FeeID) == layer && rdh.Stave(r.FeeID) == stave
	}
}

// ParseStave parses the "L<digit>_<1-2 digits>" stave string (base spec
// §6, case-insensitive) into a (layer, stave) pair.
func ParseStave(s string) (layer, stave uint8, err error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	if len(up) < 3 || up[0] != 'L' {
		return 0, 0, fmt.Errorf("invalid stave string %q: expected L<digit>_<stave>", s)
	}
	parts := strings.SplitN(up[1:], "_", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid stave string %q: missing '_'", s)
	}
	l, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid layer in stave string %q: %w", s, err)
	}
	st, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid stave number in stave string %q: %w", s, err)
	}
	return uint8(l), uint8(st), nil
}
