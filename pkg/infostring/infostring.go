// Package infostring parses the GoldSrc info-string encoding: a sequence of
// backslash-separated tokens (`\key\value\key\value`) terminated by a newline
// or the end of the buffer. It is the foundation for the server-info and
// filter payloads of the master server protocol.
package infostring

import (
	"bytes"
	"errors"
	"strconv"
	"unicode/utf8"
)

var (
	// ErrEnd marks the normal end of an info string (empty input or a
	// leading newline). Key loops treat it as a terminator.
	ErrEnd            = errors.New("end of info string")
	ErrInvalidMap     = errors.New("malformed info string")
	ErrInvalidString  = errors.New("invalid string value")
	ErrInvalidBool    = errors.New("invalid boolean value")
	ErrInvalidInteger = errors.New("invalid integer value")
)

// Parser is a cursor over an info string. Slices returned by Bytes and Rest
// alias the input buffer and are valid only as long as it is.
type Parser struct {
	cur []byte
}

func New(b []byte) *Parser {
	return &Parser{cur: b}
}

// Bytes consumes the next token. The token must begin with a backslash and
// extends up to (but not including) the next backslash, newline, or the end
// of input; it may be empty and may contain arbitrary bytes otherwise. An
// empty cursor or a leading newline yields ErrEnd, any other leading byte
// yields ErrInvalidMap.
func (p *Parser) Bytes() ([]byte, error) {
	if len(p.cur) == 0 || p.cur[0] == '\n' {
		return nil, ErrEnd
	}
	if p.cur[0] != '\\' {
		return nil, ErrInvalidMap
	}
	tail := p.cur[1:]
	pos := bytes.IndexAny(tail, "\\\n")
	if pos < 0 {
		pos = len(tail)
	}
	p.cur = tail[pos:]
	return tail[:pos], nil
}

// String consumes the next token and validates it as UTF-8.
func (p *Parser) String() (string, error) {
	s, err := p.Bytes()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(s) {
		return "", ErrInvalidString
	}
	return string(s), nil
}

// Bool consumes the next token, which must be exactly "0" or "1".
func (p *Parser) Bool() (bool, error) {
	s, err := p.Bytes()
	if err != nil {
		return false, err
	}
	switch {
	case len(s) == 1 && s[0] == '0':
		return false, nil
	case len(s) == 1 && s[0] == '1':
		return true, nil
	}
	return false, ErrInvalidBool
}

// uint consumes a decimal integer of the given width, accepting a negative
// value by reinterpreting its two's-complement bits (so "-1" is a valid
// 8-bit encoding of 255). Base prefixes are rejected.
func (p *Parser) uint(bits int) (uint64, error) {
	s, err := p.String()
	if err != nil {
		return 0, err
	}
	if v, err := strconv.ParseUint(s, 10, bits); err == nil {
		return v, nil
	}
	v, err := strconv.ParseInt(s, 10, bits)
	if err != nil {
		return 0, ErrInvalidInteger
	}
	return uint64(v) & (1<<uint(bits) - 1), nil
}

// int is the signed counterpart of uint: a too-large unsigned value wraps
// into the signed range ("255" decodes to an 8-bit -1).
func (p *Parser) int(bits int) (int64, error) {
	s, err := p.String()
	if err != nil {
		return 0, err
	}
	if v, err := strconv.ParseInt(s, 10, bits); err == nil {
		return v, nil
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, ErrInvalidInteger
	}
	shift := uint(64 - bits)
	return int64(v<<shift) >> shift, nil
}

func (p *Parser) Uint8() (uint8, error) {
	v, err := p.uint(8)
	return uint8(v), err
}

func (p *Parser) Uint16() (uint16, error) {
	v, err := p.uint(16)
	return uint16(v), err
}

func (p *Parser) Uint32() (uint32, error) {
	v, err := p.uint(32)
	return uint32(v), err
}

func (p *Parser) Uint64() (uint64, error) {
	return p.uint(64)
}

func (p *Parser) Int8() (int8, error) {
	v, err := p.int(8)
	return int8(v), err
}

func (p *Parser) Int16() (int16, error) {
	v, err := p.int(16)
	return int16(v), err
}

func (p *Parser) Int32() (int32, error) {
	v, err := p.int(32)
	return int32(v), err
}

func (p *Parser) Int64() (int64, error) {
	return p.int(64)
}

// Rest returns the unconsumed remainder of the input.
func (p *Parser) Rest() []byte {
	return p.cur
}
