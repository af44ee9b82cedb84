package milter

import (
	"github.com/milterd/milterd/codec"
	"github.com/milterd/milterd/internal/macrostore"
)

// MacroStore is the per-connection macro table handlers read via
// Session.Macros; see internal/macrostore for the implementation.
type MacroStore = macrostore.Store

// Session is the read-only view of per-connection state a Handler's
// callbacks receive: the negotiated masks and the macro values the MTA has
// announced so far. It is valid only for the duration of the callback.
type Session struct {
	Negotiation *SessionNegotiation
	Macros      *MacroStore
}

// OptNegFunc, when set, lets a Handler override the dispatcher's default
// OptNeg reply. Most handlers never need this; the dispatcher always
// computes the correct mask intersection on its own (§4.2).
type OptNegFunc func(sess *Session, peerVersion, peerActions, peerProtocol uint32) (codec.Response, error)

type ConnectFunc func(sess *Session, cmd codec.ConnectCmd) (codec.Response, error)
type HeloFunc func(sess *Session, cmd codec.HeloCmd) (codec.Response, error)
type MailFromFunc func(sess *Session, cmd codec.MailFromCmd) (codec.Response, error)
type RcptToFunc func(sess *Session, cmd codec.RcptToCmd) (codec.Response, error)
type DataFunc func(sess *Session) (codec.Response, error)
type HeaderFunc func(sess *Session, cmd codec.HeaderCmd) (codec.Response, error)
type EndHeadersFunc func(sess *Session) (codec.Response, error)
type BodyFunc func(sess *Session, cmd codec.BodyCmd) (codec.Response, error)
type EndBodyFunc func(sess *Session) ([]codec.Response, error)
type AbortFunc func(sess *Session) error
type UnknownFunc func(sess *Session, cmd codec.UnknownCmd) (codec.Response, error)

// Handler is one user-supplied milter backend. It is built with explicit
// capability flags and optional callback slots rather than by reflecting
// over overridden methods: the source this protocol was modeled on decides
// which protocol bits to clear by inspecting which methods a subclass
// overrides, which Go has no equivalent of. A Handler declares the same
// information directly instead (see spec design note on dynamic method
// overriding).
//
// A nil callback slot means the handler does not implement that command:
// the dispatcher logs a warning and answers with Continue without invoking
// anything, and for the seven commands that have a protocol-skip bit that
// bit stays set. A nil OnOptNeg is the exception: the dispatcher then
// answers with the OptNeg ack it computed itself.
type Handler struct {
	CanAddHeaders      bool
	CanChangeBody      bool
	CanAddRecipient    bool
	CanDeleteRecipient bool
	CanChangeHeaders   bool
	CanQuarantine      bool

	OnOptNeg     OptNegFunc
	OnConnect    ConnectFunc
	OnHelo       HeloFunc
	OnMailFrom   MailFromFunc
	OnRcptTo     RcptToFunc
	OnData       DataFunc
	OnHeader     HeaderFunc
	OnEndHeaders EndHeadersFunc
	OnBody       BodyFunc
	OnEndBody    EndBodyFunc
	OnAbort      AbortFunc
	OnUnknown    UnknownFunc

	// OnQuit and OnMacro are deliberately not user-settable: §4.3 mandates
	// their defaults (CloseConnection, Silent) unconditionally.
}

// advertisedActions maps the Can* flags to the OptNeg actions mask.
func (h *Handler) advertisedActions() Action {
	var a Action
	if h.CanAddHeaders {
		a |= CanAddHeaders
	}
	if h.CanChangeBody {
		a |= CanChangeBody
	}
	if h.CanAddRecipient {
		a |= CanAddRecipient
	}
	if h.CanDeleteRecipient {
		a |= CanDeleteRecipient
	}
	if h.CanChangeHeaders {
		a |= CanChangeHeaders
	}
	if h.CanQuarantine {
		a |= CanQuarantine
	}
	return a
}

// advertisedProtocol starts at ProtocolAll and clears a bit for every
// registered callback, per §6 "Initial value is 0x7F; each implemented
// callback clears its bit."
func (h *Handler) advertisedProtocol() Protocol {
	p := ProtocolAll
	if h.OnConnect != nil {
		p &^= ProtocolNoConnect
	}
	if h.OnHelo != nil {
		p &^= ProtocolNoHelo
	}
	if h.OnMailFrom != nil {
		p &^= ProtocolNoMailFrom
	}
	if h.OnRcptTo != nil {
		p &^= ProtocolNoRcptTo
	}
	if h.OnBody != nil {
		p &^= ProtocolNoBody
	}
	if h.OnHeader != nil {
		p &^= ProtocolNoHeader
	}
	if h.OnEndHeaders != nil {
		p &^= ProtocolNoEndHeaders
	}
	return p
}
