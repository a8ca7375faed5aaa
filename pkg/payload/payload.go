// Package payload renders application payload bytes for display.
//
// DecodePayload is the public entry point: it takes the protocol label as a
// plain string ("HTTP", "dns", ...). Rendering never fails: a decoder that
// errors or panics is replaced by a sentinel string for its label, so callers
// can use the result unconditionally.
package payload

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"firestige.xyz/netscope/internal/core"
)

// Sentinel renderings for decoders that could not produce output.
const (
	HTTPDecodeError = "[HTTP decode error]"
	DNSDecodeError  = "[DNS decode error]"
)

const httpHeaderTerminator = "\r\n\r\n"

// HTTPMessage is the structured view of an HTTP payload.
type HTTPMessage struct {
	Headers []string `json:"headers"`
	Body    string   `json:"body"`
}

// Decode renders data according to an already classified label. It is the
// in-module fast path used by the pipeline; other callers use DecodePayload.
//
//	HTTP    indented JSON {"headers": [...], "body": "..."}
//	DNS     lowercase hex of the bytes
//	others  UTF-8 text with invalid sequences replaced by U+FFFD
func Decode(label core.Protocol, data []byte) string {
	switch label {
	case core.ProtocolHTTP:
		return guard(HTTPDecodeError, func() (string, error) { return renderHTTP(data) })
	case core.ProtocolDNS:
		return guard(DNSDecodeError, func() (string, error) { return hex.EncodeToString(data), nil })
	default:
		return Text(data)
	}
}

// DecodePayload renders data for the protocol label. The label is matched
// case-insensitively (HTTP, HTTPS, DNS, TCP, UDP, ICMP, UNKNOWN) and unknown
// labels fall through to text.
func DecodePayload(label string, data []byte) string {
	return Decode(core.ParseProtocol(label), data)
}

// Text converts bytes to a string. Each maximal ill-formed subsequence is
// replaced by one U+FFFD, the same substitution a WHATWG UTF-8 decoder makes:
// ff fe 80 yields three replacements, a truncated e2 82 yields one.
func Text(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	var b strings.Builder
	b.Grow(len(data) + 16)
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r != utf8.RuneError || size > 1 {
			b.Write(data[i : i+size])
			i += size
			continue
		}
		b.WriteRune(utf8.RuneError)
		i += illFormedLen(data[i:])
	}
	return b.String()
}

// illFormedLen returns how many bytes of b, starting at a lead byte that does
// not begin a valid sequence, belong to one maximal subpart. Always >= 1.
func illFormedLen(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c == 0xF4:
		need, hi = 3, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	default:
		return 1
	}
	n := 1
	for n <= need && n < len(b) {
		if b[n] < lo || b[n] > hi {
			break
		}
		lo, hi = 0x80, 0xBF
		n++
	}
	return n
}

// ParseHTTP splits an HTTP message on the first blank line. Header lines keep
// their order; later blank lines stay in the body. Without a blank line the
// whole text is headers and the body is empty.
func ParseHTTP(data []byte) HTTPMessage {
	text := Text(data)
	head, body, _ := strings.Cut(text, httpHeaderTerminator)
	return HTTPMessage{
		Headers: strings.Split(head, "\r\n"),
		Body:    body,
	}
}

func renderHTTP(data []byte) (string, error) {
	msg := ParseHTTP(data)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(msg); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// guard runs fn and substitutes sentinel on error or panic.
func guard(sentinel string, fn func() (string, error)) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = sentinel
		}
	}()
	s, err := fn()
	if err != nil {
		return sentinel
	}
	return s
}
