package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/milterd/milterd/internal/wire"
)

// DecodeCommand turns one decoded wire.Message into its typed Command. It
// never blocks and never touches a connection; msg.Data must already hold
// the full payload for msg.Code.
//
// A code not in the milter v2 command table decodes to UnknownCmd rather
// than an error: §7's UnimplementedHandler/UnknownCommand taxonomy treats
// that as a Continue-worthy condition, not a MalformedFrame.
func DecodeCommand(msg *wire.Message) (Command, error) {
	switch msg.Code {
	case wire.CodeOptNeg:
		if len(msg.Data) != 12 {
			return nil, fmt.Errorf("codec: optneg: %w: want 12 bytes, got %d", wire.ErrMalformedFrame, len(msg.Data))
		}
		return OptNegCmd{
			Version:  binary.BigEndian.Uint32(msg.Data[0:4]),
			Actions:  binary.BigEndian.Uint32(msg.Data[4:8]),
			Protocol: binary.BigEndian.Uint32(msg.Data[8:12]),
		}, nil

	case wire.CodeMacro:
		if len(msg.Data) == 0 {
			return nil, fmt.Errorf("codec: macro: %w: empty payload", wire.ErrMalformedFrame)
		}
		return MacroCmd{
			ForCode: wire.Code(msg.Data[0]),
			Items:   wire.SplitNULStrings(msg.Data[1:]),
		}, nil

	case wire.CodeConn:
		hostname, rest, err := cutCString(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("codec: connect: %w", err)
		}
		if len(rest) < 3 {
			return nil, fmt.Errorf("codec: connect: %w: truncated family/port", wire.ErrMalformedFrame)
		}
		family := rest[0]
		port := binary.BigEndian.Uint16(rest[1:3])
		address := string(rest[3:])
		return ConnectCmd{Hostname: hostname, Family: family, Port: port, Address: address}, nil

	case wire.CodeHelo:
		return HeloCmd{Greeting: wire.ReadNULString(msg.Data)}, nil

	case wire.CodeMail:
		addr, rest, err := cutCString(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("codec: mailfrom: %w", err)
		}
		return MailFromCmd{Address: addr, ESMTPArgs: wire.SplitNULStrings(rest)}, nil

	case wire.CodeRcpt:
		addr, rest, err := cutCString(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("codec: rcptto: %w", err)
		}
		return RcptToCmd{Address: addr, ESMTPArgs: wire.SplitNULStrings(rest)}, nil

	case wire.CodeData:
		return DataCmd{}, nil

	case wire.CodeHeader:
		name, rest, err := cutCString(msg.Data)
		if err != nil {
			return nil, fmt.Errorf("codec: header: %w", err)
		}
		value, _, err := cutCString(rest)
		if err != nil {
			return nil, fmt.Errorf("codec: header: %w", err)
		}
		return HeaderCmd{Name: name, Value: value}, nil

	case wire.CodeEOH:
		return EndHeadersCmd{}, nil

	case wire.CodeBody:
		return BodyCmd{Chunk: msg.Data}, nil

	case wire.CodeEOB:
		return EndBodyCmd{}, nil

	case wire.CodeAbort:
		return AbortCmd{}, nil

	case wire.CodeQuit:
		return QuitCmd{}, nil

	case wire.CodeUnknown:
		return UnknownCmd{RawCode: msg.Code, Raw: msg.Data}, nil

	default:
		return UnknownCmd{RawCode: msg.Code, Raw: msg.Data}, nil
	}
}

// cutCString splits off the first NUL-terminated string in data, returning
// it alongside the remainder. A message whose command requires a
// NUL-terminated field but never finds a NUL is malformed.
func cutCString(data []byte) (head string, rest []byte, err error) {
	for i, b := range data {
		if b == 0 {
			return string(data[:i]), data[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("%w: missing NUL terminator", wire.ErrMalformedFrame)
}
