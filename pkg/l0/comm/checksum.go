package comm

// AddChecksum folds one byte into a running checksum.
func AddChecksum(sum, b byte) byte {
	return byte((uint(sum) + uint(b)) % 255)
}

// Checksum computes the running checksum over data starting from sum.
func Checksum(sum byte, data ...byte) byte {
	for _, b := range data {
		sum = AddChecksum(sum, b)
	}
	return sum
}
