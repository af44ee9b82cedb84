// Package rcptto tracks the set of envelope recipients a handler has
// accumulated for the current transaction, so a handler implementing
// CanAddRecipient/CanDeleteRecipient can diff its working set against the
// MTA's original RCPT TO commands and emit the right AddRcpt/DelRcpt
// responses.
package rcptto

import "github.com/milterd/milterd/internal/addrnorm"

// Rcpt is one recipient address plus the ESMTP arguments it was announced
// (or re-announced) with.
type Rcpt struct {
	Addr string
	Args string
}

func key(addr string) (local, domain string) {
	bare := addrnorm.RemoveAngle(addr)
	local, domain = addrnorm.Split(bare)
	return local, addrnorm.ASCIIDomain(domain)
}

// Has returns true when rcptTo is already present in rcptTos.
func Has(rcptTos []*Rcpt, rcptTo string) bool {
	findLocal, findDomain := key(rcptTo)
	for _, r := range rcptTos {
		l, d := key(r.Addr)
		if l == findLocal && d == findDomain {
			return true
		}
	}
	return false
}

// Add adds rcptTo with esmtpArgs to rcptTos and returns the new slice. If
// rcptTo is already present, its ESMTP argument is updated instead of
// adding a duplicate entry.
func Add(rcptTos []*Rcpt, rcptTo string, esmtpArgs string) (out []*Rcpt) {
	out = rcptTos
	findLocal, findDomain := key(rcptTo)
	for _, r := range out {
		l, d := key(r.Addr)
		if l == findLocal && d == findDomain {
			r.Args = esmtpArgs
			return
		}
	}
	out = append(out, &Rcpt{Addr: rcptTo, Args: esmtpArgs})
	return
}

// Del removes rcptTo from rcptTos and returns the new slice. When rcptTo is
// not present, rcptTos is returned unchanged.
func Del(rcptTos []*Rcpt, rcptTo string) (out []*Rcpt) {
	out = rcptTos
	findLocal, findDomain := key(rcptTo)
	for i, r := range out {
		l, d := key(r.Addr)
		if l == findLocal && d == findDomain {
			out = append(out[:i], out[i+1:]...)
			return
		}
	}
	return
}

// Copy creates an independent copy of rcptTos.
func Copy(rcptTos []*Rcpt) (out []*Rcpt) {
	out = make([]*Rcpt, len(rcptTos))
	for i, r := range rcptTos {
		c := *r
		out[i] = &c
	}
	return
}

// Diff calculates the difference between orig and changed: recipients
// present in changed but not orig are additions, recipients present in
// orig but not changed (or whose ESMTP argument changed) are deletions
// paired with an addition of the new value.
func Diff(orig []*Rcpt, changed []*Rcpt) (deletions []*Rcpt, additions []*Rcpt) {
	foundOrig := make(map[string]*Rcpt)
	foundChanged := make(map[string]bool)
	for _, r := range orig {
		foundOrig[r.Addr] = r
	}
	for _, r := range changed {
		if o := foundOrig[r.Addr]; o == nil && !foundChanged[r.Addr] {
			c := *r
			additions = append(additions, &c)
		} else if o != nil && o.Args != r.Args && !foundChanged[r.Addr] {
			od, rc := *o, *r
			deletions = append(deletions, &od)
			additions = append(additions, &rc)
		}
		foundChanged[r.Addr] = true
	}
	for _, r := range orig {
		if !foundChanged[r.Addr] {
			c := *r
			deletions = append(deletions, &c)
		}
	}
	return
}
