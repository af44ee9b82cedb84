// Package codec implements the milter command/response codec: pure
// functions that turn a decoded wire.Message into a typed Command, and a
// typed Response into a wire.Message. Neither direction touches a net.Conn.
package codec

import "github.com/milterd/milterd/internal/wire"

// Command is a decoded milter command. Exactly one concrete type exists per
// wire.Code; a type switch on the concrete type is how callers distinguish
// them.
type Command interface {
	Code() wire.Code
}

// OptNegCmd is the O (SMFIC_OPTNEG) command: the MTA's opening offer.
type OptNegCmd struct {
	Version  uint32
	Actions  uint32
	Protocol uint32
}

func (OptNegCmd) Code() wire.Code { return wire.CodeOptNeg }

// MacroCmd is the D (SMFIC_MACRO) command: macro name/value pairs announced
// ahead of the command named by ForCode.
type MacroCmd struct {
	ForCode wire.Code
	Items   []string
}

func (MacroCmd) Code() wire.Code { return wire.CodeMacro }

// ConnectCmd is the C (SMFIC_CONNECT) command.
type ConnectCmd struct {
	Hostname string
	Family   byte
	Port     uint16
	Address  string
}

func (ConnectCmd) Code() wire.Code { return wire.CodeConn }

// HeloCmd is the H (SMFIC_HELO) command.
type HeloCmd struct {
	Greeting string
}

func (HeloCmd) Code() wire.Code { return wire.CodeHelo }

// MailFromCmd is the M (SMFIC_MAIL) command.
type MailFromCmd struct {
	Address   string
	ESMTPArgs []string
}

func (MailFromCmd) Code() wire.Code { return wire.CodeMail }

// RcptToCmd is the R (SMFIC_RCPT) command.
type RcptToCmd struct {
	Address   string
	ESMTPArgs []string
}

func (RcptToCmd) Code() wire.Code { return wire.CodeRcpt }

// DataCmd is the T (SMFIC_DATA) command. It carries no payload.
type DataCmd struct{}

func (DataCmd) Code() wire.Code { return wire.CodeData }

// HeaderCmd is the L (SMFIC_HEADER) command.
type HeaderCmd struct {
	Name  string
	Value string
}

func (HeaderCmd) Code() wire.Code { return wire.CodeHeader }

// EndHeadersCmd is the N (SMFIC_EOH) command. It carries no payload.
type EndHeadersCmd struct{}

func (EndHeadersCmd) Code() wire.Code { return wire.CodeEOH }

// BodyCmd is the B (SMFIC_BODY) command: one chunk of message body.
type BodyCmd struct {
	Chunk []byte
}

func (BodyCmd) Code() wire.Code { return wire.CodeBody }

// EndBodyCmd is the E (SMFIC_BODYEOB) command. It carries no payload.
type EndBodyCmd struct{}

func (EndBodyCmd) Code() wire.Code { return wire.CodeEOB }

// AbortCmd is the A (SMFIC_ABORT) command. It carries no payload.
type AbortCmd struct{}

func (AbortCmd) Code() wire.Code { return wire.CodeAbort }

// QuitCmd is the Q (SMFIC_QUIT) command. It carries no payload.
type QuitCmd struct{}

func (QuitCmd) Code() wire.Code { return wire.CodeQuit }

// UnknownCmd is any command code not in the table, or U (SMFIC_UNKNOWN)
// itself. Raw holds the payload verbatim.
type UnknownCmd struct {
	RawCode wire.Code
	Raw     []byte
}

func (c UnknownCmd) Code() wire.Code { return c.RawCode }
