package milterutil

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/transform"
)

const cr = '\r'
const lf = '\n'
const sp = ' '
const nul = '\000'

// crlfCanonTransformer is a [transform.Transformer] that canonicalizes every
// line ending in src (bare CR, bare LF, or CRLF) to CRLF in dst. FormatResponse
// runs it over a ReplyCode's text before the reply-code transformer splits
// the result into SMTP continuation lines.
type crlfCanonTransformer struct {
	prev byte
}

func (t *crlfCanonTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nDst < len(dst) && nSrc < len(src) {
		c := src[nSrc]
		if c == lf {
			if t.prev != cr {
				if len(dst) <= nDst+1 {
					err = transform.ErrShortDst
					return
				}
				dst[nDst] = cr
				nDst++
			}
		} else if c == cr {
			if !atEOF && len(src) <= nSrc+1 {
				err = transform.ErrShortSrc
				return
			}
			if (atEOF && len(src) == nSrc+1) || src[nSrc+1] != lf {
				if len(dst) <= nDst+1 {
					err = transform.ErrShortDst
					return
				}
				dst[nDst] = c
				nDst++
				c = lf
			}
		}
		dst[nDst] = c
		nDst++
		nSrc++
		t.prev = c
	}
	if nSrc < len(src) {
		err = transform.ErrShortDst
	}
	return
}

func (t *crlfCanonTransformer) Reset() {
	t.prev = 0
}

var _ transform.Transformer = (*crlfCanonTransformer)(nil)

// percentEscapeTransformer is a [transform.Transformer] that doubles every
// "%" in src. sendmail treats a lone "%" in reply text it re-parses as the
// start of a macro reference, so FormatResponse runs this before handing
// reply text back to the MTA.
type percentEscapeTransformer struct {
	transform.NopResetter
}

func (t *percentEscapeTransformer) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	for nDst < len(dst) && nSrc < len(src) {
		c := src[nSrc]
		if c == '%' {
			if len(dst) <= nDst+1 {
				err = transform.ErrShortDst
				return
			}
			dst[nDst] = c
			nDst++
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	if nSrc < len(src) {
		err = transform.ErrShortDst
	}
	return
}

var _ transform.Transformer = (*percentEscapeTransformer)(nil)

// replyCodeTransformer is a [transform.Transformer] that prefixes each line
// of src with Code, producing the continuation-line shape a multi-line SMTP
// reply needs (a "-" after the code on every line but the last). It also
// implements RFC 2034 enhanced status code propagation: if the first line of
// src opens with an enhanced code, that code is repeated on every
// continuation line.
//
// replyCodeTransformer expects src already canonicalized to CRLF; it does
// not fold long lines itself, so it must run after lineWrapTransformer in a
// [transform.Chain] or a reply longer than one frame can result.
type replyCodeTransformer struct {
	Code    uint16
	rfc2034 string
	init    bool
}

var errReplyStartsWithLF = errors.New("milterutil: SMTP reply cannot start with LF")

// enhancedCodeEnd finds the end of an RFC 2034 enhanced status code at the
// front of src (e.g. "5.7.1 "), returning the index just past the
// trailing space, or -1 if src does not open with one consistent with code.
func enhancedCodeEnd(src []byte, code uint16) int {
	if len(src) > 5 { // "1.1.1 " is the smallest enhanced error code

		switch src[0] {
		case '2', '4', '5':
			if src[1] != '.' || code/100 != uint16(src[0]-'0') {
				return -1
			}
		default:
			return -1
		}

		subject := 2
		i := 2
	loop:
		for ; i < len(src)-1; i++ {
			switch src[i] {
			case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
				if src[i] == '0' && i == 2 && (src[i+1] >= '0' && src[i+1] <= '9') {
					return -1
				}
				if src[i+1] == '.' {
					i++
					subject = i
					i++
					break loop
				}
			default:
				return -1
			}
		}
		if subject > 5 { // X.YYY. is the biggest valid length
			return -1
		}

		for ; i < len(src)-1; i++ {
			if i > subject+3 {
				return -1
			}
			switch src[i] {
			case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
				if src[i] == '0' && i == subject+1 && (src[i+1] >= '0' && src[i+1] <= '9') {
					return -1
				}
				if src[i+1] == ' ' {
					return i + 2
				}
			default:
				return -1
			}
		}
	}
	return -1
}

func (t *replyCodeTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	if !t.init && (t.Code < 100 || t.Code > 599) {
		return 0, 0, fmt.Errorf("milterutil: %d is not a valid SMTP code", t.Code)
	}
	if atEOF && !t.init && len(src) == 0 {
		if len(dst) <= nDst+4 {
			return 0, 0, transform.ErrShortDst
		}
		nDst += copy(dst[nDst:], fmt.Sprintf("%d ", t.Code))
		return
	}

	for nDst < len(dst) && nSrc < len(src) {
		c := src[nSrc]
		if !t.init || c == lf {
			if len(dst) <= nDst+5 {
				err = transform.ErrShortDst
				return
			}
			if !t.init && c == lf {
				err = errReplyStartsWithLF
				return
			}
			newline := false
			for peek := nSrc + 1; peek < len(src); peek++ {
				if src[peek] == lf {
					newline = true
					break
				}
			}
			if !atEOF && !newline {
				err = transform.ErrShortSrc
				return
			}
			if t.init {
				dst[nDst] = c
				nDst++
				nSrc++
			}
			if newline {
				nDst += copy(dst[nDst:], fmt.Sprintf("%d-%s", t.Code, t.rfc2034))
			} else {
				nDst += copy(dst[nDst:], fmt.Sprintf("%d %s", t.Code, t.rfc2034))
			}
			if !t.init {
				t.init = true
				dst[nDst] = c
				nDst++
				nSrc++
				if escEnd := enhancedCodeEnd(src, t.Code); escEnd > -1 {
					t.rfc2034 = string(src[:escEnd])
				}
			}
		} else {
			dst[nDst] = c
			nDst++
			nSrc++
		}
	}
	if nSrc < len(src) {
		err = transform.ErrShortDst
	}
	return
}

func (t *replyCodeTransformer) Reset() {
	t.init = false
	t.rfc2034 = ""
}

var _ transform.Transformer = (*replyCodeTransformer)(nil)

// DefaultMaximumLineLength is the line-length ceiling lineWrapTransformer
// uses when MaximumLength is zero. SMTP theoretically allows up to 1000
// bytes, but some MTAs force breaks at narrower limits, so FormatResponse
// stays well under that.
const DefaultMaximumLineLength = 950

var errWrongMaximumLineLength = errors.New("milterutil: MaximumLength must be 4 or more")

// lineWrapTransformer is a [transform.Transformer] that folds src into
// lines of at most MaximumLength bytes, the width limit a ReplyCode's text
// must respect before replyCodeTransformer prefixes it with a status code.
//
// CR and LF are treated as line breaks already present and do not count
// toward the length. Folding is UTF-8 aware: it only breaks at a rune
// boundary, so it starts looking for a break point MaximumLength-3 bytes
// in, guaranteeing no emitted line ever exceeds MaximumLength bytes even
// when that means breaking a few bytes early.
type lineWrapTransformer struct {
	MaximumLength uint
	length        uint
}

func (t *lineWrapTransformer) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	if t.MaximumLength == 0 {
		t.MaximumLength = DefaultMaximumLineLength
	}
	if t.MaximumLength < utf8.UTFMax {
		return 0, 0, errWrongMaximumLineLength
	}

	for nDst < len(dst) && nSrc < len(src) {
		c := src[nSrc]
		isCRorLF := c == cr || c == lf
		if !isCRorLF && ((t.length > t.MaximumLength-utf8.UTFMax && utf8.RuneStart(c)) || (t.length >= t.MaximumLength)) {
			if len(dst) <= nDst+2 {
				err = transform.ErrShortDst
				return
			}
			nDst += copy(dst[nDst:], "\r\n")
			t.length = 0
		}
		dst[nDst] = c
		nDst++
		nSrc++
		if isCRorLF {
			t.length = 0
		} else {
			t.length++
		}
	}
	if nSrc < len(src) {
		err = transform.ErrShortDst
	}
	return
}

func (t *lineWrapTransformer) Reset() {
	t.length = 0
}

var _ transform.Transformer = (*lineWrapTransformer)(nil)

// newlineToSpaceTransformer is a [transform.Transformer] that collapses
// every CRLF or bare CR/LF in src to a single SP in dst. It is UTF-8 safe:
// UTF-8 never places an ASCII byte inside a multi-byte rune.
type newlineToSpaceTransformer struct {
	prevCR bool
}

func (t *newlineToSpaceTransformer) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nDst < len(dst) && nSrc < len(src) {
		c := src[nSrc]
		if c == lf {
			if t.prevCR {
				nSrc++
				t.prevCR = false
				continue
			}
			c = sp
		}
		t.prevCR = c == cr
		if t.prevCR {
			c = sp
		}
		dst[nDst] = c
		nDst++
		nSrc++
	}
	if nSrc < len(src) {
		err = transform.ErrShortDst
	}
	if err == nil && !atEOF && len(src) > 0 && src[len(src)-1] == cr {
		err = transform.ErrShortSrc
		nSrc--
		nDst--
		return
	}
	return
}

func (t *newlineToSpaceTransformer) Reset() {
	t.prevCR = false
}

var _ transform.Transformer = (*newlineToSpaceTransformer)(nil)

// nulToSpaceTransformer is a [transform.Transformer] that replaces every NUL
// byte in src with SP. It is UTF-8 safe: UTF-8 never places a zero byte
// inside a multi-byte rune.
type nulToSpaceTransformer struct {
	transform.NopResetter
}

func (t *nulToSpaceTransformer) Transform(dst, src []byte, _ bool) (nDst, nSrc int, err error) {
	for nDst < len(dst) && nSrc < len(src) {
		c := src[nSrc]
		if c == nul {
			dst[nDst] = sp
		} else {
			dst[nDst] = c
		}
		nDst++
		nSrc++
	}
	return
}

var _ transform.Transformer = (*nulToSpaceTransformer)(nil)

// NewlineToSpace collapses every newline and NUL byte in s to a single SP.
// sendmail's SMFIR_QUARANTINE text cannot carry embedded newlines, so
// QuarantineReason runs every caller-supplied reason through this first.
func NewlineToSpace(s string) string {
	t := transform.Chain(&nulToSpaceTransformer{}, &newlineToSpaceTransformer{})
	dst, _, _ := transform.String(t, s)
	return dst
}
