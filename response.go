package milter

import (
	"strings"

	"github.com/milterd/milterd/codec"
	"github.com/milterd/milterd/milterutil"
)

// Accept returns a Response that tells the MTA to accept the current
// transaction. No more events for it are sent to this handler.
func Accept() codec.Response { return codec.Accept{} }

// Continue returns a Response that tells the MTA to proceed normally.
func Continue() codec.Response { return codec.Continue{} }

// Discard returns a Response that tells the MTA to silently discard the
// current transaction.
func Discard() codec.Response { return codec.Discard{} }

// Reject returns a Response that tells the MTA to reject the current
// transaction with a permanent (5xx) error.
func Reject() codec.Response { return codec.Reject{} }

// TempFail returns a Response that tells the MTA to reject the current
// transaction with a temporary (4xx) error, inviting a later retry.
func TempFail() codec.Response { return codec.TempFail{} }

// Progress returns a Response that resets the MTA's read timeout for this
// connection without otherwise affecting the transaction.
func Progress() codec.Response { return codec.Progress{} }

// CustomReply builds a ReplyCode response out of an SMTP status code and
// free-form text, canonicalizing line endings and folding overlong lines
// the way sendmail expects. code must be a three digit SMTP reply code
// (100-599); a 421 code causes the MTA to end the session, which this
// function does not special-case (the MTA does).
func CustomReply(code uint16, text string) (codec.Response, error) {
	formatted, err := milterutil.FormatResponse(code, text)
	if err != nil {
		return nil, err
	}
	digits := strings.SplitN(formatted, " ", 2)[0]
	rest := strings.TrimPrefix(formatted, digits)
	rest = strings.TrimPrefix(rest, " ")
	return codec.ReplyCode{Code: digits, Text: rest}, nil
}

// QuarantineReason sanitizes a quarantine reason the way sendmail requires:
// no embedded newlines.
func QuarantineReason(reason string) string {
	return milterutil.NewlineToSpace(reason)
}

// Quarantine returns a Response that holds the current message in the
// MTA's quarantine queue instead of delivering it, tagged with reason.
func Quarantine(reason string) codec.Response {
	return codec.Quarantine{Reason: QuarantineReason(reason)}
}

// AddHeader returns a Response that appends a new header field at the end
// of the header block. Requires CanAddHeaders.
func AddHeader(name, value string) codec.Response {
	return codec.AddHeader{Name: name, Value: value}
}

// ChangeHeader returns a Response that replaces (or, if value is empty,
// deletes) the index'th (1-based) occurrence of a header named name.
// Requires CanChangeHeaders.
func ChangeHeader(index uint32, name, value string) codec.Response {
	return codec.ChgHeader{Index: index, Name: name, Value: value}
}

// InsertHeader returns a Response that inserts a header at a 1-based
// position from the top of the header block. Requires CanChangeHeaders.
func InsertHeader(index uint32, name, value string) codec.Response {
	return codec.InsHeader{Index: index, Name: name, Value: value}
}

// AddRcpt returns a Response that adds rcpt as an additional envelope
// recipient. Requires CanAddRecipient.
func AddRcpt(addr string) codec.Response {
	return codec.AddRcpt{Addr: addr}
}

// DelRcpt returns a Response that removes addr from the envelope
// recipients. Requires CanDeleteRecipient.
func DelRcpt(addr string) codec.Response {
	return codec.DelRcpt{Addr: addr}
}

// SetSender returns a Response that replaces the envelope sender with addr.
// Requires CanChangeHeaders (the milter protocol reuses that action bit for
// SMFIR_CHGFROM).
func SetSender(addr string) codec.Response {
	return codec.SetSender{Addr: addr}
}

// ReplaceBody returns a Response carrying one chunk of replacement body
// data. A full body replacement is several of these returned together from
// OnEndBody. Requires CanChangeBody.
func ReplaceBody(chunk []byte) codec.Response {
	return codec.ReplaceBody{Chunk: chunk}
}
