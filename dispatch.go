package milter

import (
	"errors"

	"github.com/milterd/milterd/codec"
	"github.com/milterd/milterd/internal/macrostore"
)

// OutcomeKind tags a DispatchOutcome. The source this protocol was modeled
// on returns either a single response, a list of responses, or a sentinel
// meaning "no response" from the same return slot, which makes "empty
// list" and "no response" easy to conflate. DispatchOutcome keeps the four
// cases explicit instead.
type OutcomeKind int

const (
	// OutcomeRespond carries exactly one response to write.
	OutcomeRespond OutcomeKind = iota
	// OutcomeRespondMany carries zero or more responses, written in order.
	OutcomeRespondMany
	// OutcomeSilent means no bytes are written for this command.
	OutcomeSilent
	// OutcomeClose means write nothing more and close the connection
	// after any pending writes finish.
	OutcomeClose
)

// DispatchOutcome is what Dispatcher.Dispatch returns for one command.
type DispatchOutcome struct {
	Kind      OutcomeKind
	Responses []codec.Response
	Reason    string
}

func respond(r codec.Response) DispatchOutcome {
	return DispatchOutcome{Kind: OutcomeRespond, Responses: []codec.Response{r}}
}

func respondMany(rs []codec.Response) DispatchOutcome {
	return DispatchOutcome{Kind: OutcomeRespondMany, Responses: rs}
}

var silent = DispatchOutcome{Kind: OutcomeSilent}

func closeWith(reason string) DispatchOutcome {
	return DispatchOutcome{Kind: OutcomeClose, Reason: reason}
}

// Dispatcher drives one connection's protocol. It owns a Handler plus the
// negotiation and macro state for that connection (§4.2).
type Dispatcher struct {
	handler *Handler
	negot   SessionNegotiation
	macros  macrostore.Store
}

// NewDispatcher returns a Dispatcher for one connection using handler. The
// handler's Can*/On* fields are read once, at construction, to compute the
// initial advertised masks; mutating them afterward has no effect.
func NewDispatcher(handler *Handler) *Dispatcher {
	d := &Dispatcher{handler: handler}
	d.negot.AdvertisedActions = handler.advertisedActions()
	d.negot.AdvertisedProtocol = handler.advertisedProtocol()
	return d
}

func (d *Dispatcher) session() *Session {
	return &Session{Negotiation: &d.negot, Macros: &d.macros}
}

// Dispatch routes one decoded Command to its matching handler callback and
// returns the outcome the transport must act on.
func (d *Dispatcher) Dispatch(cmd codec.Command) DispatchOutcome {
	switch c := cmd.(type) {
	case codec.OptNegCmd:
		return d.dispatchOptNeg(c)
	case codec.MacroCmd:
		return d.dispatchMacro(c)
	case codec.ConnectCmd:
		return d.dispatchSimple(func() (codec.Response, error) {
			if d.handler.OnConnect == nil {
				LogWarning("milter: no OnConnect handler, replying Continue")
				return nil, nil
			}
			return d.handler.OnConnect(d.session(), c)
		})
	case codec.HeloCmd:
		return d.dispatchSimple(func() (codec.Response, error) {
			if d.handler.OnHelo == nil {
				LogWarning("milter: no OnHelo handler, replying Continue")
				return nil, nil
			}
			return d.handler.OnHelo(d.session(), c)
		})
	case codec.MailFromCmd:
		return d.dispatchSimple(func() (codec.Response, error) {
			if d.handler.OnMailFrom == nil {
				LogWarning("milter: no OnMailFrom handler, replying Continue")
				return nil, nil
			}
			return d.handler.OnMailFrom(d.session(), c)
		})
	case codec.RcptToCmd:
		return d.dispatchSimple(func() (codec.Response, error) {
			if d.handler.OnRcptTo == nil {
				LogWarning("milter: no OnRcptTo handler, replying Continue")
				return nil, nil
			}
			return d.handler.OnRcptTo(d.session(), c)
		})
	case codec.DataCmd:
		return d.dispatchSimple(func() (codec.Response, error) {
			if d.handler.OnData == nil {
				LogWarning("milter: no OnData handler, replying Continue")
				return nil, nil
			}
			return d.handler.OnData(d.session())
		})
	case codec.HeaderCmd:
		return d.dispatchSimple(func() (codec.Response, error) {
			if d.handler.OnHeader == nil {
				LogWarning("milter: no OnHeader handler, replying Continue")
				return nil, nil
			}
			return d.handler.OnHeader(d.session(), c)
		})
	case codec.EndHeadersCmd:
		return d.dispatchSimple(func() (codec.Response, error) {
			if d.handler.OnEndHeaders == nil {
				LogWarning("milter: no OnEndHeaders handler, replying Continue")
				return nil, nil
			}
			return d.handler.OnEndHeaders(d.session())
		})
	case codec.BodyCmd:
		return d.dispatchSimple(func() (codec.Response, error) {
			if d.handler.OnBody == nil {
				LogWarning("milter: no OnBody handler, replying Continue")
				return nil, nil
			}
			return d.handler.OnBody(d.session(), c)
		})
	case codec.EndBodyCmd:
		return d.dispatchEndBody()
	case codec.AbortCmd:
		return d.dispatchAbort()
	case codec.QuitCmd:
		// §4.2 "The dispatcher MUST close on Q regardless of whether the
		// handler cooperates."
		return closeWith("quit")
	case codec.UnknownCmd:
		return d.dispatchUnknown(c)
	default:
		return respond(Continue())
	}
}

func (d *Dispatcher) dispatchOptNeg(c codec.OptNegCmd) DispatchOutcome {
	version := ProtocolVersion
	if c.Version < version {
		version = c.Version
	}
	actionsMask := uint32(d.negot.AdvertisedActions) & c.Actions
	protocolMask := uint32(d.negot.AdvertisedProtocol) & c.Protocol

	d.negot.NegotiatedVersion = version
	d.negot.NegotiatedActions = Action(actionsMask)
	d.negot.NegotiatedProtocol = Protocol(protocolMask)

	ack := codec.OptNegAck{Version: version, ActionsMask: actionsMask, ProtocolMask: protocolMask}

	if d.handler.OnOptNeg != nil {
		override, err := d.handler.OnOptNeg(d.session(), c.Version, c.Actions, c.Protocol)
		outcome, handled := d.translateHandlerError(err)
		if handled {
			return outcome
		}
		if override != nil {
			return respond(override)
		}
	}
	return respond(ack)
}

func (d *Dispatcher) dispatchMacro(c codec.MacroCmd) DispatchOutcome {
	d.macros.SetAll(c.Items)
	return silent
}

func (d *Dispatcher) dispatchAbort() DispatchOutcome {
	if d.handler.OnAbort == nil {
		LogWarning("milter: no OnAbort handler, replying Continue")
		return respond(Continue())
	}
	if outcome, handled := d.translateHandlerError(d.handler.OnAbort(d.session())); handled {
		return outcome
	}
	return respond(Continue())
}

func (d *Dispatcher) dispatchUnknown(c codec.UnknownCmd) DispatchOutcome {
	if d.handler.OnUnknown == nil {
		LogWarning("milter: no handler for command %q, replying Continue", byte(c.RawCode))
		return respond(Continue())
	}
	return d.dispatchSimple(func() (codec.Response, error) {
		return d.handler.OnUnknown(d.session(), c)
	})
}

func (d *Dispatcher) dispatchEndBody() DispatchOutcome {
	if d.handler.OnEndBody == nil {
		LogWarning("milter: no OnEndBody handler, replying Continue")
		return respond(Continue())
	}
	resps, err := d.handler.OnEndBody(d.session())
	if outcome, handled := d.translateHandlerError(err); handled {
		return outcome
	}
	if len(resps) == 0 {
		return respond(Accept())
	}
	return respondMany(resps)
}

// dispatchSimple runs a callback that yields at most one Response and
// folds a missing callback, a nil Response and the three handler failure
// kinds into the right DispatchOutcome.
func (d *Dispatcher) dispatchSimple(call func() (codec.Response, error)) DispatchOutcome {
	resp, err := call()
	if outcome, handled := d.translateHandlerError(err); handled {
		return outcome
	}
	if resp == nil {
		return respond(Continue())
	}
	return respond(resp)
}

// translateHandlerError implements §7's error taxonomy for handler-raised
// errors. ok is false when err is nil and there is nothing to translate.
func (d *Dispatcher) translateHandlerError(err error) (outcome DispatchOutcome, ok bool) {
	if err == nil {
		return DispatchOutcome{}, false
	}
	switch {
	case errors.Is(err, ErrTempFailure):
		return respond(TempFail()), true
	case errors.Is(err, ErrPermFailure):
		return respond(Reject()), true
	case errors.Is(err, ErrCloseConnection):
		return closeWith(err.Error()), true
	default:
		LogWarning("milter: internal handler error: %v", err)
		return closeWith("internal error"), true
	}
}

// recoverHandlerPanic converts a recovered panic from a handler callback
// into the InternalHandlerError outcome (§7), so a bug in user code cannot
// crash the worker or hang the MTA.
func recoverHandlerPanic(r any) DispatchOutcome {
	LogWarning("milter: recovered panic in handler: %v", r)
	return closeWith("internal error")
}

