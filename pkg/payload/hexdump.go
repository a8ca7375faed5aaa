package payload

import "strings"

const (
	bytesPerLine = 16
	hexDigits    = "0123456789abcdef"
)

// HexDump formats buf[offset:offset+length] as lines of up to 16 bytes:
//
//	0000: 47 45 54 20 ...
//
// Line offsets are relative to the start of the range, in lowercase hex padded
// to four digits. Every line ends with a newline. An empty range yields "".
// Arguments outside buf are clamped to it.
func HexDump(buf []byte, offset, length int) string {
	if offset < 0 {
		offset = 0
	}
	if offset > len(buf) {
		offset = len(buf)
	}
	if length < 0 {
		length = 0
	}
	if length > len(buf)-offset {
		length = len(buf) - offset
	}
	if length == 0 {
		return ""
	}

	data := buf[offset : offset+length]
	lines := (length + bytesPerLine - 1) / bytesPerLine

	var sb strings.Builder
	// "oooo:" + " xx" per byte + "\n" per line
	sb.Grow(lines*(5+1) + length*3 + 8)

	for i := 0; i < length; i += bytesPerLine {
		writeOffset(&sb, i)
		sb.WriteByte(':')
		end := i + bytesPerLine
		if end > length {
			end = length
		}
		for _, b := range data[i:end] {
			sb.WriteByte(' ')
			sb.WriteByte(hexDigits[b>>4])
			sb.WriteByte(hexDigits[b&0x0f])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// writeOffset writes n as lowercase hex, zero-padded to at least four digits.
func writeOffset(sb *strings.Builder, n int) {
	var tmp [16]byte
	i := len(tmp)
	for n > 0 || i > len(tmp)-4 {
		i--
		tmp[i] = hexDigits[n&0x0f]
		n >>= 4
	}
	sb.Write(tmp[i:])
}
