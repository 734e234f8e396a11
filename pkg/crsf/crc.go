package crsf

import "github.com/sigurn/crc8"

var crcTable = crc8.MakeTable(crc8.CRC8_DVB_S2)

// CRC8 returns the frame checksum (CRC-8/DVB-S2, polynomial 0xD5) of data.
func CRC8(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}

// CRC8Update continues a checksum from seed over data.
func CRC8Update(seed byte, data ...byte) byte {
	return crc8.Update(seed, data, crcTable)
}
