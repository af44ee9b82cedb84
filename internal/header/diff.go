package header

import "bytes"

const (
	OpEqual = iota
	OpChange
	OpInsert
)

type opDiff struct {
	kind  int
	field *HeaderField
	index int
}

func computeDiffsMiddle(orig []*HeaderField, changed []*HeaderField, index int) (diffs []opDiff) {
	// either orig and changed are empty or the first element is different
	origLen, changedLen := len(orig), len(changed)
	changedI := 0
	switch {
	case origLen == 0 && changedLen == 0:
		return nil
	case origLen == 0:
		// orig empty -> everything must be inserts
		for _, c := range changed {
			diffs = append(diffs, opDiff{OpInsert, c, index})
		}
		return
	case changedLen == 0:
		// This should not happen since we do not delete headerField entries
		// but if the user completely replaces the headers it could indeed happen.
		// Panic in this case so the programming error surfaces.
		panic("internal structure error: do not completely replace transaction.Headers – use its methods to alter it")
	default: // origLen > 0 && changedLen > 0
		o := orig[0]
		if o.Index < 0 {
			panic("internal structure error: all elements in orig need to have an index bigger than -1: do not completely replace transaction.Headers – use its methods to alter it")
		}
		// find o.index in changed
		for i, c := range changed {
			if c.Index == o.Index {
				index = o.Index
				changedI = i
				for i = 0; i < changedI; i++ {
					diffs = append(diffs, opDiff{OpInsert, changed[i], index - 1})
				}
				if bytes.Equal(changed[changedI].Raw, o.Raw) {
					diffs = append(diffs, opDiff{OpEqual, o, o.Index})
				} else if changed[changedI].Key() == o.Key() {
					diffs = append(diffs, opDiff{OpChange, changed[changedI], o.Index})
				} else {
					// a Cursor.Replace call, delete the original
					diffs = append(diffs, opDiff{
						kind: OpChange,
						field: &HeaderField{
							Index:        o.Index,
							CanonicalKey: o.CanonicalKey,
							Raw:          []byte(o.Key() + ":"),
						},
						index: o.Index,
					})
					// insert changed in front of deleted header
					diffs = append(diffs, opDiff{OpInsert, &HeaderField{
						Index:        -1,
						CanonicalKey: changed[changedI].CanonicalKey,
						Raw:          changed[changedI].Raw,
					}, index})
					index-- // in this special case we actually do not need to increase the index below
				}
				changedI++
				break
			} else if c.Index > o.Index {
				panic("internal structure error: index of original was not found in changed: do not completely replace transaction.Headers – use its methods to alter it")
			}
		}
		// we only consumed the first element of orig
		index++
		restDiffs := computeDiffs(orig[1:], changed[changedI:], index)
		if len(restDiffs) > 0 {
			diffs = append(diffs, restDiffs...)
		}
		return
	}
}

func computeDiffs(orig []*HeaderField, changed []*HeaderField, index int) (diffs []opDiff) {
	origLen, changedLen := len(orig), len(changed)
	// find common prefix
	commonPrefixLen, commonSuffixLen := 0, 0
	for i := 0; i < origLen && i < changedLen; i++ {
		if !bytes.Equal(orig[i].Raw, changed[i].Raw) || orig[i].Index != changed[i].Index {
			break
		}
		commonPrefixLen += 1
		index = orig[i].Index
	}
	// find common suffix (down to the commonPrefixLen element)
	i, j := origLen-1, changedLen-1
	for i > commonPrefixLen-1 && j > commonPrefixLen-1 {
		if !bytes.Equal(orig[i].Raw, changed[j].Raw) || orig[i].Index != changed[j].Index {
			break
		}
		commonSuffixLen += 1
		i--
		j--
	}
	for i := 0; i < commonPrefixLen; i++ {
		diffs = append(diffs, opDiff{OpEqual, orig[i], orig[i].Index})
	}
	// find the changed parts, recursively calls computeDiffs afterwards
	middleDiffs := computeDiffsMiddle(orig[commonPrefixLen:origLen-commonSuffixLen], changed[commonPrefixLen:changedLen-commonSuffixLen], index)
	if len(middleDiffs) > 0 {
		diffs = append(diffs, middleDiffs...)
	}
	for i := origLen - commonSuffixLen; i < origLen; i++ {
		diffs = append(diffs, opDiff{OpEqual, orig[i], orig[i].Index})
	}
	return
}

type ModOp struct {
	Kind  int
	Index int
	Name  string
	Value string
}

// DiffOps finds differences between orig and changed.
// The differences are expressed as change and insert operations – to be mapped to milter modification actions.
// Deletions are changes to an empty value.
func DiffOps(orig *HeaderSet, changed *HeaderSet) (changeInsertOps []ModOp, addOps []ModOp) {
	origFields := orig.Cursor()
	origLen := origFields.Len()
	origIndexByKeyCounter := make(map[string]int)
	origIndexByKey := make([]int, origLen)
	for i := 0; origFields.Next(); i++ {
		origIndexByKeyCounter[origFields.CanonicalKey()] += 1
		origIndexByKey[i] = origIndexByKeyCounter[origFields.CanonicalKey()]
	}
	diffs := computeDiffs(orig.fields, changed.fields, -1)
	for _, diff := range diffs {
		switch diff.kind {
		case OpInsert:
			idx := diff.index + 2
			if idx-1 >= origLen {
				addOps = append(addOps, ModOp{
					Index: idx,
					Name:  diff.field.Key(),
					Value: diff.field.Value(),
				})
			} else {
				changeInsertOps = append(changeInsertOps, ModOp{
					Kind:  OpInsert,
					Index: idx,
					Name:  diff.field.Key(),
					Value: diff.field.Value(),
				})
			}
		case OpChange:
			if diff.index < origLen {
				changeInsertOps = append(changeInsertOps, ModOp{
					Kind:  OpChange,
					Index: origIndexByKey[diff.index],
					Name:  diff.field.Key(),
					Value: diff.field.Value(),
				})
			} else { // should not happen but just make adds out of it
				addOps = append(addOps, ModOp{
					Index: diff.index + 1,
					Name:  diff.field.Key(),
					Value: diff.field.Value(),
				})
			}
		}
	}

	return
}

// RecreateOps deletes all headers of orig and adds all headers of changed.
func RecreateOps(orig *HeaderSet, changed *HeaderSet) (changeInsertOps []ModOp, addOps []ModOp) {
	origIndexByKeyCounter := make(map[string]int)
	origFields := orig.Cursor()
	for i := 0; origFields.Next(); i++ {
		origIndexByKeyCounter[origFields.CanonicalKey()] += 1
		changeInsertOps = append(changeInsertOps, ModOp{
			Kind:  OpChange,
			Index: origIndexByKeyCounter[origFields.CanonicalKey()],
			Name:  origFields.Key(),
			Value: "",
		})
	}
	changedFields := changed.Cursor()
	i := 0
	for changedFields.Next() {
		if changedFields.IsDeleted() {
			continue
		}
		addOps = append(addOps, ModOp{
			Index: i,
			Name:  changedFields.Key(),
			Value: changedFields.Value(),
		})
		i++
	}

	return
}

// ComputeOps is a convenience method that either calls DiffOps or RecreateOps
func ComputeOps(recreate bool, orig *HeaderSet, changed *HeaderSet) (changeInsertOps []ModOp, addOps []ModOp) {
	if recreate {
		return RecreateOps(orig, changed)
	}
	return DiffOps(orig, changed)
}
