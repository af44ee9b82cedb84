package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/milterd/milterd"
	"github.com/milterd/milterd/codec"
	"github.com/milterd/milterd/internal/addrnorm"
	"github.com/milterd/milterd/internal/body"
	"github.com/milterd/milterd/internal/header"
	"github.com/milterd/milterd/internal/rcptto"
	"github.com/milterd/milterd/milterutil"
)

// replaceBodyChunkSize is the chunk size used when re-emitting a modified
// body as a ReplaceBody sequence: each chunk must fit in one milter frame,
// so it stays well under the wire's max frame size.
const replaceBodyChunkSize = 1024*64 - 1

var nextID atomic.Uint64

// logMilter is a demo milter backend: it logs every callback it receives
// and, at end-of-message, tags the message with an X-Milter-Scanned header
// computed through a real header diff instead of a hardcoded AddHeader.
// It is the Go-native equivalent of the teacher's log-milter command.
type logMilter struct {
	id uint64

	rawHeaders []byte
	headers    *header.HeaderSet
	body       *body.Buffer
	rcpts      []*rcptto.Rcpt
}

func newLogMilter() *milter.Handler {
	l := &logMilter{id: nextID.Add(1)}
	return &milter.Handler{
		CanAddHeaders: true,
		CanChangeBody: true,
		OnOptNeg:      l.onOptNeg,
		OnConnect:     l.onConnect,
		OnHelo:        l.onHelo,
		OnMailFrom:    l.onMailFrom,
		OnRcptTo:      l.onRcptTo,
		OnData:        l.onData,
		OnHeader:      l.onHeader,
		OnEndHeaders:  l.onEndHeaders,
		OnBody:        l.onBody,
		OnEndBody:     l.onEndBody,
		OnAbort:       l.onAbort,
		OnUnknown:     l.onUnknown,
	}
}

func (l *logMilter) log(format string, v ...any) {
	log.Printf(fmt.Sprintf("[%d] %s", l.id, format), v...)
}

func (l *logMilter) onOptNeg(sess *milter.Session, peerVersion, peerActions, peerProtocol uint32) (codec.Response, error) {
	l.log("OPTNEG version=%d actions=%#x protocol=%#x", peerVersion, peerActions, peerProtocol)
	return nil, nil // let the dispatcher compute the default ack
}

func (l *logMilter) onConnect(sess *milter.Session, cmd codec.ConnectCmd) (codec.Response, error) {
	l.log("CONNECT host=%q family=%c port=%d addr=%q", cmd.Hostname, cmd.Family, cmd.Port, cmd.Address)
	if queueID, ok := sess.Macros.Get("i"); ok {
		l.log("queue id = %s", queueID)
	}
	return milter.Continue(), nil
}

func (l *logMilter) onHelo(sess *milter.Session, cmd codec.HeloCmd) (codec.Response, error) {
	l.log("HELO %q", cmd.Greeting)
	return milter.Continue(), nil
}

func (l *logMilter) onMailFrom(sess *milter.Session, cmd codec.MailFromCmd) (codec.Response, error) {
	local, domain := addrnorm.Split(addrnorm.RemoveAngle(cmd.Address))
	l.log("MAIL FROM %s@%s args=%v", local, addrnorm.ASCIIDomain(domain), cmd.ESMTPArgs)
	l.rcpts = nil
	return milter.Continue(), nil
}

func (l *logMilter) onRcptTo(sess *milter.Session, cmd codec.RcptToCmd) (codec.Response, error) {
	l.log("RCPT TO %s", cmd.Address)
	var args string
	if len(cmd.ESMTPArgs) > 0 {
		args = cmd.ESMTPArgs[0]
	}
	l.rcpts = rcptto.Add(l.rcpts, cmd.Address, args)
	return milter.Continue(), nil
}

func (l *logMilter) onData(sess *milter.Session) (codec.Response, error) {
	l.log("DATA (%d recipients)", len(l.rcpts))
	l.rawHeaders = l.rawHeaders[:0]
	return milter.Continue(), nil
}

func (l *logMilter) onHeader(sess *milter.Session, cmd codec.HeaderCmd) (codec.Response, error) {
	l.log("HEADER %s: %q", cmd.Name, cmd.Value)
	l.rawHeaders = append(l.rawHeaders, []byte(cmd.Name+": "+cmd.Value+"\r\n")...)
	return milter.Continue(), nil
}

func (l *logMilter) onEndHeaders(sess *milter.Session) (codec.Response, error) {
	h, err := header.New(append(l.rawHeaders, '\r', '\n'))
	if err != nil {
		l.log("could not parse collected headers: %v", err)
		h, _ = header.New(nil)
	}
	l.headers = h
	l.body = body.New(64*1024, 32*1024*1024)
	l.log("EOH: %d header fields collected", h.Len())
	return milter.Continue(), nil
}

func (l *logMilter) onBody(sess *milter.Session, cmd codec.BodyCmd) (codec.Response, error) {
	if l.body != nil {
		_, _ = l.body.Write(cmd.Chunk)
	}
	l.log("BODY chunk of %d bytes", len(cmd.Chunk))
	return milter.Continue(), nil
}

// onEndBody tags the message by diffing the original header set against a
// copy with one header added, then appends a disclaimer footer to the body
// and re-emits it as a chunked ReplaceBody sequence, translating both sets
// of changes into the modification responses the MTA expects.
func (l *logMilter) onEndBody(sess *milter.Session) ([]codec.Response, error) {
	if l.body != nil {
		defer l.body.Close()
	}
	if l.headers == nil {
		return []codec.Response{milter.Accept()}, nil
	}
	changed := l.headers.Copy()
	changed.Set("X-Milter-Scanned", fmt.Sprintf("logmilterd id=%d", l.id))
	changeInsertOps, addOps := header.DiffOps(l.headers, changed)

	responses := make([]codec.Response, 0, len(changeInsertOps)+len(addOps)+2)
	for _, op := range changeInsertOps {
		if op.Kind == header.OpInsert {
			responses = append(responses, milter.InsertHeader(uint32(op.Index), op.Name, op.Value))
		} else {
			responses = append(responses, milter.ChangeHeader(uint32(op.Index), op.Name, op.Value))
		}
	}
	for _, op := range addOps {
		responses = append(responses, milter.AddHeader(op.Name, op.Value))
	}

	bodyResponses, err := l.replaceBodyWithFooter()
	if err != nil {
		l.log("could not append disclaimer footer: %v", err)
	} else {
		responses = append(responses, bodyResponses...)
	}

	l.log("EOB: tagging message with %d header changes, %d body chunks", len(responses)-len(bodyResponses), len(bodyResponses))
	responses = append(responses, milter.Accept())
	return responses, nil
}

// replaceBodyWithFooter reads the buffered body, appends a disclaimer
// footer, and re-chunks the result into ReplaceBody responses sized for
// the wire. Chunking through a ChunkScanner (rather than one giant
// ReplaceBody) keeps every response within one milter frame regardless of
// how large the original message was.
func (l *logMilter) replaceBodyWithFooter() ([]codec.Response, error) {
	if l.body == nil {
		return nil, nil
	}
	if _, err := l.body.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	original, err := io.ReadAll(l.body)
	if err != nil {
		return nil, err
	}
	footer := fmt.Sprintf("\r\n-- scanned by logmilterd id=%d --\r\n", l.id)
	replacement := bytes.NewReader(append(original, footer...))

	scanner := milterutil.AcquireChunkScanner(replaceBodyChunkSize, replacement)
	defer scanner.Release()

	var responses []codec.Response
	for scanner.Scan() {
		chunk := make([]byte, len(scanner.Chunk()))
		copy(chunk, scanner.Chunk())
		responses = append(responses, milter.ReplaceBody(chunk))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (l *logMilter) onAbort(sess *milter.Session) error {
	l.log("ABORT")
	l.headers = nil
	if l.body != nil {
		_ = l.body.Close()
		l.body = nil
	}
	l.rcpts = nil
	return nil
}

func (l *logMilter) onUnknown(sess *milter.Session, cmd codec.UnknownCmd) (codec.Response, error) {
	l.log("UNKNOWN command %q (%d bytes)", string(rune(cmd.RawCode)), len(cmd.Raw))
	return milter.Continue(), nil
}
