package wire

import (
	"bytes"
	"strings"
)

// nulByte is the field terminator every NUL-terminated wire string ends
// with (§3: "Strings are NUL-terminated byte sequences on the wire").
const nulByte = "\x00"

// SplitNULStrings decodes a "sequence of strings" field (§3): data
// holding one or more NUL-separated values, with a trailing NUL on the
// final element. The trailing NUL is optional on input so a truncated or
// hand-built payload still decodes.
func SplitNULStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	if data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return strings.Split(string(data), nulByte)
}

// ReadNULString reads one NUL-terminated string field from the front of
// data. A field missing its terminator (data exhausted first) is returned
// verbatim rather than treated as an error; callers that require the
// terminator use the codec package's cutCString instead.
func ReadNULString(data []byte) string {
	if pos := bytes.IndexByte(data, 0); pos != -1 {
		return string(data[:pos])
	}
	return string(data)
}

// AppendNULString appends s to dest followed by a NUL terminator, the
// shape every address- and text-bearing response field (§4.1) needs. s
// must not itself contain a NUL byte.
func AppendNULString(dest []byte, s string) []byte {
	dest = append(dest, s...)
	return append(dest, 0)
}
