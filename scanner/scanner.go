// Package scanner tokenizes PDF syntax: names, numbers, strings, dictionary
// and array delimiters, streams, and bare keywords. The parser drives it via
// Next and SeekTo; stream payloads are returned verbatim when a length hint
// is set, otherwise the scanner falls back to searching for endstream.
package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // numeric value
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenRef                      // indirect ref '5 0 R'
	TokenStream                   // stream payload
	TokenKeyword                  // other keywords (obj, endobj, >>, ], ...)
)

type Token struct {
	Type  TokenType
	Str   string // name or keyword text
	Int   int64  // integer value; object number for refs
	Gen   int    // generation for refs
	Float float64
	IsInt bool
	Bool  bool
	Bytes []byte // string or stream payload
	Pos   int64
}

type Config struct {
	MaxStringLength int64 // 0 means 64 KiB
	MaxStreamScan   int64 // endstream search window, 0 means whole buffer
}

// Scanner walks an in-memory PDF buffer.
type Scanner struct {
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
}

func New(data []byte, cfg Config) *Scanner {
	if cfg.MaxStringLength <= 0 {
		cfg.MaxStringLength = 64 * 1024
	}
	return &Scanner{data: data, cfg: cfg, nextStreamLen: -1}
}

func (s *Scanner) Position() int64 { return s.pos }

func (s *Scanner) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("seek out of range: %d", offset)
	}
	s.pos = offset
	return nil
}

// SetNextStreamLength tells the scanner how many payload bytes follow the
// next stream keyword. Negative clears the hint.
func (s *Scanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

func (s *Scanner) Next() (Token, error) {
	if err := s.skipWSAndComments(); err != nil {
		return Token{}, err
	}
	start := s.pos
	c := s.data[s.pos]
	switch {
	case c == '/':
		return s.scanName()
	case c == '(':
		return s.scanLiteralString()
	case c == '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Pos: start}, nil
		}
		return s.scanHexString()
	case c == '[':
		s.pos++
		return Token{Type: TokenArray, Pos: start}, nil
	case c == ']':
		s.pos++
		return Token{Type: TokenKeyword, Str: "]", Pos: start}, nil
	case c == '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{}, fmt.Errorf("stray '>' at offset %d", start)
	case isNumberStart(c):
		return s.scanNumberOrRef()
	case isRegular(c):
		return s.scanKeyword()
	default:
		s.pos++
		return Token{}, fmt.Errorf("unexpected byte %q at offset %d", c, start)
	}
}

func (s *Scanner) skipWSAndComments() error {
	for {
		if s.pos >= int64(len(s.data)) {
			return io.EOF
		}
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return nil
	}
}

func (s *Scanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // consume '/'
	var b bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) {
			hi, okHi := fromHex(s.data[s.pos+1])
			lo, okLo := fromHex(s.data[s.pos+2])
			if okHi && okLo {
				b.WriteByte(hi<<4 | lo)
				s.pos += 3
				continue
			}
		}
		b.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: b.String(), Pos: start}, nil
}

// scanLiteralString implements PDF 7.3.4.2: balanced parentheses, backslash
// escapes, up to three octal digits, and line continuations.
func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // consume '('
	depth := 1
	var b bytes.Buffer
	for {
		if s.pos >= int64(len(s.data)) {
			return Token{}, errors.New("unterminated literal string")
		}
		if int64(b.Len()) > s.cfg.MaxStringLength {
			return Token{}, errors.New("literal string exceeds limit")
		}
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				return Token{}, errors.New("unterminated escape")
			}
			e := s.data[s.pos]
			s.pos++
			switch e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case '(', ')', '\\':
				b.WriteByte(e)
			case '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case '\n':
				// line continuation, emit nothing
			default:
				if e >= '0' && e <= '7' {
					val := int(e - '0')
					for i := 0; i < 2 && s.pos < int64(len(s.data)); i++ {
						d := s.data[s.pos]
						if d < '0' || d > '7' {
							break
						}
						val = val*8 + int(d-'0')
						s.pos++
					}
					b.WriteByte(byte(val))
				} else {
					b.WriteByte(e)
				}
			}
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: b.Bytes(), Pos: start}, nil
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // consume '<'
	var b bytes.Buffer
	var hi byte
	haveHi := false
	for {
		if s.pos >= int64(len(s.data)) {
			return Token{}, errors.New("unterminated hex string")
		}
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if haveHi {
				b.WriteByte(hi << 4) // odd digit count, final low nibble is zero
			}
			return Token{Type: TokenString, Bytes: b.Bytes(), Pos: start}, nil
		}
		if isWhitespace(c) {
			continue
		}
		v, ok := fromHex(c)
		if !ok {
			return Token{}, fmt.Errorf("invalid hex digit %q", c)
		}
		if haveHi {
			b.WriteByte(hi<<4 | v)
			haveHi = false
		} else {
			hi = v
			haveHi = true
		}
	}
}

func (s *Scanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	num1, ok := s.scanNumberString()
	if !ok {
		return Token{}, fmt.Errorf("invalid number at offset %d", start)
	}
	// Lookahead for "<gen> R" to merge indirect references into one token.
	save := s.pos
	if err := s.skipWSAndComments(); err == nil {
		if gen, ok := s.scanNumberString(); ok {
			after := s.pos
			if err := s.skipWSAndComments(); err == nil {
				if s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
					(s.pos+1 >= int64(len(s.data)) || isWhitespace(s.data[s.pos+1]) || isDelimiter(s.data[s.pos+1])) {
					s.pos++
					n1, err1 := strconv.ParseInt(num1, 10, 64)
					n2, err2 := strconv.Atoi(gen)
					if err1 == nil && err2 == nil {
						return Token{Type: TokenRef, Int: n1, Gen: n2, Pos: start}, nil
					}
				}
			}
			_ = after
		}
	}
	s.pos = save
	if i, err := strconv.ParseInt(num1, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, nil
	}
	f, err := strconv.ParseFloat(num1, 64)
	if err != nil {
		return Token{}, fmt.Errorf("parse number %q: %w", num1, err)
	}
	return Token{Type: TokenNumber, Float: f, Pos: start}, nil
}

func (s *Scanner) scanNumberString() (string, bool) {
	start := s.pos
	seenDigit := false
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') {
			if c >= '0' && c <= '9' {
				seenDigit = true
			}
			s.pos++
			continue
		}
		break
	}
	if !seenDigit {
		s.pos = start
		return "", false
	}
	return string(s.data[start:s.pos]), true
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) || isDelimiter(c) {
			break
		}
		s.pos++
	}
	word := string(s.data[start:s.pos])
	switch word {
	case "true":
		return Token{Type: TokenBoolean, Bool: true, Pos: start}, nil
	case "false":
		return Token{Type: TokenBoolean, Bool: false, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	}
	return Token{Type: TokenKeyword, Str: word, Pos: start}, nil
}

// scanStream consumes the EOL after the stream keyword and returns the
// payload. With a length hint the payload is sliced directly; without one
// the scanner searches for the closing endstream keyword.
func (s *Scanner) scanStream(start int64) (Token, error) {
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	length := s.nextStreamLen
	s.nextStreamLen = -1
	if length >= 0 {
		if s.pos+length > int64(len(s.data)) {
			return Token{}, errors.New("stream length exceeds buffer")
		}
		payload := s.data[s.pos : s.pos+length]
		s.pos += length
		s.skipEndstream()
		return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
	}
	window := s.data[s.pos:]
	if s.cfg.MaxStreamScan > 0 && int64(len(window)) > s.cfg.MaxStreamScan {
		window = window[:s.cfg.MaxStreamScan]
	}
	idx := bytes.Index(window, []byte("endstream"))
	if idx < 0 {
		return Token{}, errors.New("endstream not found")
	}
	end := idx
	// Trim the EOL that separates payload from the endstream keyword.
	if end > 0 && window[end-1] == '\n' {
		end--
	}
	if end > 0 && window[end-1] == '\r' {
		end--
	}
	payload := window[:end]
	s.pos += int64(idx) + int64(len("endstream"))
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

func (s *Scanner) skipEndstream() {
	if err := s.skipWSAndComments(); err != nil {
		return
	}
	if bytes.HasPrefix(s.data[s.pos:], []byte("endstream")) {
		s.pos += int64(len("endstream"))
	}
}

func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isNumberStart(c byte) bool {
	return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func isRegular(c byte) bool { return !isWhitespace(c) && !isDelimiter(c) }

func fromHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
