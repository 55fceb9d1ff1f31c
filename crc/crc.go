// Package crc is CRC-8 with polynomial 0x93, no reflection, zero init.
package crc

const Poly93 byte = 0x93

var table93 = makeTable(Poly93)

func makeTable(poly byte) (t [256]byte) {
	for i := range t {
		t[i] = update(poly, 0, byte(i))
	}
	return t
}

// update is the bitwise reference, table93 must agree with it.
func update(poly, crc, data byte) byte {
	crc ^= data
	for i := 0; i < 8; i++ {
		if crc&0x80 != 0 {
			crc = crc<<1 ^ poly
		} else {
			crc <<= 1
		}
	}
	return crc
}

// Sum8 continues crc over data.
func Sum8(crc byte, data []byte) byte {
	for _, b := range data {
		crc = table93[crc^b]
	}
	return crc
}
