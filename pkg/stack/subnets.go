package stack

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// minSubnetBits is the smallest subnet the split will produce (/28, the EC2 minimum)
const minSubnetBits = 28

// splitCIDR divides an IPv4 range into count equal, contiguous subnets.
// The subnet size is the largest power of two that fits count subnets, so
// 4 subnets of a /16 come out as /18s.
func splitCIDR(cidr string, count int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("subnet count must be positive, got %d", count)
	}

	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR %q: %w", cidr, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("CIDR %q is not IPv4", cidr)
	}
	prefix = prefix.Masked()

	extra := 0
	for (1 << extra) < count {
		extra++
	}

	bits := prefix.Bits() + extra
	if bits > minSubnetBits {
		return nil, fmt.Errorf("CIDR %q is too small for %d subnets", cidr, count)
	}

	base4 := prefix.Addr().As4()
	base := binary.BigEndian.Uint32(base4[:])
	size := uint32(1) << (32 - bits)

	subnets := make([]string, 0, count)
	for i := 0; i < count; i++ {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], base+uint32(i)*size)
		subnets = append(subnets, netip.PrefixFrom(netip.AddrFrom4(b), bits).String())
	}

	return subnets, nil
}
