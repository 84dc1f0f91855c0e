package cache

import (
	"bytes"
	"strconv"
	"strings"
)

// parseHeaderForKey extracts the value of a single "Key: value\r\n" header
// line. Matching is case-insensitive on the key; whitespace immediately
// before the colon is significant (it makes the key not match at all,
// matching real-world header parsers that reject it), one optional space
// after the colon is stripped, and an empty resulting value is treated as
// absent.
func parseHeaderForKey(key string, line []byte) ([]byte, bool) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return nil, false
	}
	if !strings.EqualFold(string(line[:idx]), key) {
		return nil, false
	}
	value := line[idx+1:]
	value = bytes.TrimSuffix(value, []byte("\r\n"))
	value = bytes.TrimSuffix(value, []byte("\n"))
	value = bytes.TrimPrefix(value, []byte(" "))
	if len(value) == 0 {
		return nil, false
	}
	return value, true
}

// parseStatusLine reads the numeric code out of a "HTTP/1.1 200 OK" style
// status line.
func parseStatusLine(line []byte) (int, bool) {
	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return 0, false
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return code, true
}
