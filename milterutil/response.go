package milterutil

import (
	"fmt"
	"golang.org/x/text/transform"
	"strings"
)

// MaxResponseSize bounds a formatted ReplyCode/CustomReply text: 64 MiB
// minus the command byte and the trailing NUL the ReplyCode encoding
// appends. It is not derived from the inbound frame ceiling and is far
// larger than wire.DefaultMaxFrameSize, so a reply that passes this bound
// can still exceed what a peer using that default ceiling accepts.
const MaxResponseSize = 64*1024*1024 - 2

// FormatResponse renders smtpCode and reason into the wire text a
// ReplyCode response carries. smtpCode must be 100-599. reason may begin
// with an RFC 2034 enhanced status code, which is then repeated on every
// line of a multi-line reply. The response folds onto multiple lines when
// reason already contains newlines or a line would exceed
// DefaultMaximumLineLength bytes. "\n" is canonicalized to "\r\n" and "%"
// is doubled to survive sendmail's own response formatting. An error is
// returned if the formatted text would exceed MaxResponseSize bytes.
//
// Some examples:
//
//	FormatResponse(250, "Accept") // "250 Accept"
//	FormatResponse(250, "%") // "250 %%"
//	FormatResponse(550, "5.7.1 Command rejected") // "550 5.7.1 Command rejected"
//	FormatResponse(550, "5.7.1 Command rejected\nContact support") // "550-5.7.1 Command rejected\r\n550 5.7.1 Contact support"
//
// See https://www.iana.org/assignments/smtp-enhanced-status-codes/smtp-enhanced-status-codes.xhtml for a list of extended error codes and when to use them.
func FormatResponse(smtpCode uint16, reason string) (string, error) {
	if smtpCode < 100 || smtpCode > 599 {
		return "", fmt.Errorf("milter: invalid code %d", smtpCode)
	}
	// bail early if the reason is way too long
	if len(reason) > MaxResponseSize-4 {
		return "", fmt.Errorf("milter: reason too long: %d > %d", len(reason), MaxResponseSize-4)
	}
	escapeAndNormalize := transform.Chain(&percentEscapeTransformer{}, &crlfCanonTransformer{})
	data, _, _ := transform.String(escapeAndNormalize, strings.TrimRight(reason, "\r\n"))
	data, _, _ = transform.String(&lineWrapTransformer{}, data)
	data, _, _ = transform.String(&replyCodeTransformer{Code: smtpCode}, data)
	if len(data) > MaxResponseSize {
		return "", fmt.Errorf("milter: formatted reason too long: %d > %d", len(data), MaxResponseSize)
	}
	return data, nil
}
