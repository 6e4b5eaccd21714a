package logbus

// Sweep decodes every currently-readable entry in the ring, starting from
// physical offset 0 and following each entry's own encoded size to find
// the next one — the same traversal a writer's bump allocator performs,
// run in reverse by a reader instead of tracked live. This is a
// best-effort snapshot (spec.md §4.8: the control plane's view is
// read-only and derived, not authoritative): a torn entry or a decode
// that runs past the ring's write cursor stops the sweep rather than
// guessing, so a concurrent writer never causes Sweep to return
// misparsed data.
//
// Entries are returned in write order from physical offset 0 up to the
// write cursor. After a wraparound, older entries still resident beyond
// the write cursor are not returned, and entries overwritten by the
// wraparound are simply absent, matching the ring's lossy-by-design
// overwrite-on-wrap behavior (same spirit as the transport's slot ring,
// spec.md §4.1).
func Sweep(r *Ring) ([]Entry, error) {
	writeOff, err := r.WriteOffset()
	if err != nil {
		return nil, err
	}

	var out []Entry
	var cursor uint32
	seen := make(map[uint32]bool)
	for {
		if cursor == writeOff && len(out) > 0 {
			break
		}
		if seen[cursor] {
			break
		}
		seen[cursor] = true

		e, ok, err := r.ReadAt(cursor)
		if err != nil {
			return out, err
		}
		if !ok || e.Seq == 0 {
			break // seq 0 is never assigned: unwritten ring bytes
		}
		out = append(out, e)

		next := cursor + e.encodedSize()
		if next+entryFixedSize > r.Capacity() {
			next = 0
		}
		cursor = next
		if cursor == 0 && writeOff == 0 {
			break
		}
	}
	return out, nil
}
