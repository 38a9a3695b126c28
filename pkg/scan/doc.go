// Package scan reads ranges of a db.View as lazy sequences.
//
// A range is described by Options: From is where iteration begins and To is
// where it stops, in either direction. Neither bound has to be a stored key.
// A forward scan starts at the first key >= From and ends at the largest key
// <= To. A reverse scan starts at the last key <= From and ends at the
// smallest key >= To. Limit caps the number of entries.
//
// Sequences compose with Map and Select and are driven either by Produce or,
// one value at a time, by Next, HasNext and Rewind:
//
//	seq, err := scan.New(store, scan.From([]byte("a")), scan.Limit(10))
//	if err != nil {
//		return err
//	}
//	sizes := scan.Map(seq, func(e scan.Entry) int { return len(e.Value) })
//	for {
//		n, ok, err := sizes.Next()
//		if err != nil {
//			return err
//		}
//		if !ok {
//			break
//		}
//		total += n
//	}
//
// A sequence is valid while its view is open. Driving it after the view was
// closed fails with an error wrapping db.ErrClosed.
package scan
