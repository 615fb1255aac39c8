package protocol

// Checksum sums every byte as an unsigned value into a 16-bit accumulator.
func Checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}
