package codec

import "github.com/milterd/milterd/internal/wire"

// Response is an encodable milter response. Exactly one concrete type
// exists per wire response code.
type Response interface {
	Encode() *wire.Message
}

// Accept is the 'a' SMFIR_ACCEPT response: no payload.
type Accept struct{}

func (Accept) Encode() *wire.Message { return &wire.Message{Code: code(wire.ActAccept)} }

// Continue is the 'c' SMFIR_CONTINUE response: no payload.
type Continue struct{}

func (Continue) Encode() *wire.Message { return &wire.Message{Code: code(wire.ActContinue)} }

// Discard is the 'd' SMFIR_DISCARD response: no payload.
type Discard struct{}

func (Discard) Encode() *wire.Message { return &wire.Message{Code: code(wire.ActDiscard)} }

// Reject is the 'r' SMFIR_REJECT response: no payload.
type Reject struct{}

func (Reject) Encode() *wire.Message { return &wire.Message{Code: code(wire.ActReject)} }

// TempFail is the 't' SMFIR_TEMPFAIL response: no payload.
type TempFail struct{}

func (TempFail) Encode() *wire.Message { return &wire.Message{Code: code(wire.ActTempFail)} }

// ConnFail is the 'f' SMFIR_CONN_FAIL response: no payload.
type ConnFail struct{}

func (ConnFail) Encode() *wire.Message { return &wire.Message{Code: code(wire.ActConnFail)} }

// Progress is the 'p' SMFIR_PROGRESS response: no payload.
type Progress struct{}

func (Progress) Encode() *wire.Message { return &wire.Message{Code: code(wire.ActProgress)} }

// ReplyCode is the 'y' SMFIR_REPLYCODE response: a three digit SMTP code
// plus free text, e.g. ReplyCode{Code: "550", Text: "no thanks"}.
type ReplyCode struct {
	Code string
	Text string
}

func (r ReplyCode) Encode() *wire.Message {
	data := wire.AppendNULString(nil, r.Code+" "+r.Text)
	return &wire.Message{Code: code(wire.ActReplyCode), Data: data}
}

// AddRcpt is the '+' SMFIR_ADDRCPT response.
type AddRcpt struct {
	Addr string
}

func (a AddRcpt) Encode() *wire.Message {
	return &wire.Message{Code: code(wire.ActAddRcpt), Data: wire.AppendNULString(nil, a.Addr)}
}

// DelRcpt is the '-' SMFIR_DELRCPT response.
type DelRcpt struct {
	Addr string
}

func (d DelRcpt) Encode() *wire.Message {
	return &wire.Message{Code: code(wire.ActDelRcpt), Data: wire.AppendNULString(nil, d.Addr)}
}

// SetSender is the 's' SMFIR_CHGFROM response.
type SetSender struct {
	Addr string
}

func (s SetSender) Encode() *wire.Message {
	return &wire.Message{Code: code(wire.ActSetSender), Data: wire.AppendNULString(nil, s.Addr)}
}

// AddHeader is the 'h' SMFIR_ADDHEADER response.
type AddHeader struct {
	Name  string
	Value string
}

func (h AddHeader) Encode() *wire.Message {
	var data []byte
	data = wire.AppendNULString(data, h.Name)
	data = wire.AppendNULString(data, h.Value)
	return &wire.Message{Code: code(wire.ActAddHeader), Data: data}
}

// ChgHeader is the 'm' SMFIR_CHGHEADER response: replace (or delete, if
// Value is empty) the Index'th occurrence (1-based) of a header named Name.
type ChgHeader struct {
	Index uint32
	Name  string
	Value string
}

func (h ChgHeader) Encode() *wire.Message {
	data := wire.AppendUint32(nil, h.Index)
	data = wire.AppendNULString(data, h.Name)
	data = wire.AppendNULString(data, h.Value)
	return &wire.Message{Code: code(wire.ActChangeHeader), Data: data}
}

// InsHeader is the 'i' SMFIR_INSHEADER response: insert a header at Index
// (1-based position from the top of the header block).
type InsHeader struct {
	Index uint32
	Name  string
	Value string
}

func (h InsHeader) Encode() *wire.Message {
	data := wire.AppendUint32(nil, h.Index)
	data = wire.AppendNULString(data, h.Name)
	data = wire.AppendNULString(data, h.Value)
	return &wire.Message{Code: code(wire.ActInsertHeader), Data: data}
}

// ReplaceBody is the 'b' SMFIR_REPLBODY response: one chunk of replacement
// body data. A full body replacement is several of these in a RespondMany.
type ReplaceBody struct {
	Chunk []byte
}

func (b ReplaceBody) Encode() *wire.Message {
	return &wire.Message{Code: code(wire.ActReplBody), Data: b.Chunk}
}

// Quarantine is the 'q' SMFIR_QUARANTINE response.
type Quarantine struct {
	Reason string
}

func (q Quarantine) Encode() *wire.Message {
	return &wire.Message{Code: code(wire.ActQuarantine), Data: wire.AppendNULString(nil, q.Reason)}
}

// OptNegAck is the 'O' SMFIC_OPTNEG response the dispatcher echoes back
// during negotiation.
type OptNegAck struct {
	Version      uint32
	ActionsMask  uint32
	ProtocolMask uint32
}

func (o OptNegAck) Encode() *wire.Message {
	data := wire.AppendUint32(nil, o.Version)
	data = wire.AppendUint32(data, o.ActionsMask)
	data = wire.AppendUint32(data, o.ProtocolMask)
	return &wire.Message{Code: wire.CodeOptNeg, Data: data}
}

func code[T ~byte](c T) wire.Code { return wire.Code(c) }
