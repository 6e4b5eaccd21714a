package transport

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Publisher owns the write cursor for a topic segment. At most one
// Publisher may be bound per segment (spec.md §3 invariant 3).
type Publisher struct {
	seg *Segment
}

// BindPublisher acquires the publisher role on seg.
func BindPublisher(seg *Segment) (*Publisher, error) {
	if err := seg.BindPublisher(); err != nil {
		return nil, err
	}
	return &Publisher{seg: seg}, nil
}

// Close releases the publisher slot so a future process may bind again.
func (p *Publisher) Close() error { return p.seg.UnbindPublisher() }

// Publish writes payload into the next ring slot following the seqlock
// protocol in spec.md §4.1:
//
//  1. target index i = (write_seq+1) mod slot_count
//  2. enter the seqlock: the slot's seq word holds (write_seq+1)<<1, so
//     store that value with the low bit set (odd = torn/in-progress)
//  3. copy the payload and compute its CRC-32C
//  4. store the final even word (write_seq+1)<<1 with release ordering
//  5. publish write_seq := write_seq+1 with release ordering
//
// No slot mutation occurs if payload exceeds the slot's capacity.
func (p *Publisher) Publish(payload []byte) error {
	cap := p.seg.slotSize - SlotHeaderSize
	if uint32(len(payload)) > cap {
		return fmt.Errorf("%w: payload is %d bytes, capacity is %d", ErrPayloadTooLarge, len(payload), cap)
	}

	writeSeq, err := p.seg.WriteSeq()
	if err != nil {
		return err
	}
	nextSeq := writeSeq + 1
	idx := uint32(nextSeq % uint64(p.seg.slotCount))
	base := slotOffset(p.seg.slotSize, idx)

	// Step 2: seqlock enter — odd sequence marks the slot torn.
	if err := p.seg.mem.AtomicStore64(base+slotOffSeq, nextSeq<<1|1); err != nil {
		return err
	}

	// Step 3: copy payload and compute its checksum.
	if err := p.seg.mem.WriteAt(base+slotOffPayload, payload); err != nil {
		return err
	}
	sum := crc32c(payload)

	lenCrc := make([]byte, 8)
	binary.LittleEndian.PutUint32(lenCrc[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(lenCrc[4:8], sum)
	if err := p.seg.mem.WriteAt(base+slotOffLen, lenCrc); err != nil {
		return err
	}
	if err := p.seg.mem.WriteAt(base+slotOffTSNs, encodeU64(uint64(time.Now().UnixNano()))); err != nil {
		return err
	}

	// Step 4: commit the slot — even sequence, release ordering.
	if err := p.seg.mem.AtomicStore64(base+slotOffSeq, nextSeq<<1); err != nil {
		return err
	}

	// Step 5: publish the new write_seq.
	return p.seg.setWriteSeq(nextSeq)
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

// maxTornReadRetries bounds step 4 of the subscribe protocol before the
// reader gives up on a sequence and reports TornRead.
const maxTornReadRetries = 8

// Subscriber owns a per-consumer read cursor.
type Subscriber struct {
	seg     *Segment
	lastSeq uint64
}

// BindSubscriber attaches a new subscriber starting at lastSeq (0 means
// "start from sequence 1"; if the ring has already wrapped past it, the
// first Receive reports an overflow and skips ahead).
func BindSubscriber(seg *Segment, lastSeq uint64) (*Subscriber, error) {
	if _, err := seg.incSubscribers(); err != nil {
		return nil, err
	}
	return &Subscriber{seg: seg, lastSeq: lastSeq}, nil
}

// Close releases the subscriber's slot in the segment's subscriber count.
func (s *Subscriber) Close() error {
	_, err := s.seg.decSubscribers()
	return err
}

// LastSeq returns the subscriber's last observed sequence number.
func (s *Subscriber) LastSeq() uint64 { return s.lastSeq }

// Receive implements the subscribe protocol of spec.md §4.1. A nil message
// with EventNone means "nothing new". A non-nil Event accompanies an
// overflow (ring wraparound while the subscriber was behind) or a torn
// read (recovered by skipping the sequence).
func (s *Subscriber) Receive(dest []byte) (n int, ev Event, err error) {
	writeSeq, err := s.seg.WriteSeq()
	if err != nil {
		return 0, Event{}, err
	}
	if writeSeq == s.lastSeq {
		return 0, Event{}, nil
	}

	slotCount := uint64(s.seg.slotCount)
	if writeSeq-s.lastSeq > slotCount {
		from := s.lastSeq + 1
		s.lastSeq = writeSeq - slotCount
		return 0, Event{Kind: EventOverflow, SkippedFrom: from, SkippedTo: s.lastSeq}, nil
	}

	target := s.lastSeq + 1
	for attempt := 0; attempt < maxTornReadRetries; attempt++ {
		idx := uint32(target % slotCount)
		base := slotOffset(s.seg.slotSize, idx)

		seq, err := s.seg.mem.AtomicLoad64(base + slotOffSeq)
		if err != nil {
			return 0, Event{}, err
		}
		if seq&1 != 0 || seq>>1 != target {
			// In-progress write or stale slot: reload write_seq and retry.
			writeSeq, err = s.seg.WriteSeq()
			if err != nil {
				return 0, Event{}, err
			}
			continue
		}

		lenCrc := make([]byte, 8)
		if err := s.seg.mem.ReadAt(base+slotOffLen, lenCrc); err != nil {
			return 0, Event{}, err
		}
		payloadLen := binary.LittleEndian.Uint32(lenCrc[0:4])
		wantCRC := binary.LittleEndian.Uint32(lenCrc[4:8])
		if payloadLen > uint32(len(dest)) {
			return 0, Event{}, fmt.Errorf("transport: destination buffer too small: need %d, have %d", payloadLen, len(dest))
		}

		if err := s.seg.mem.ReadAt(base+slotOffPayload, dest[:payloadLen]); err != nil {
			return 0, Event{}, err
		}

		// Re-check the sequence didn't change under us mid-copy.
		seqAfter, err := s.seg.mem.AtomicLoad64(base + slotOffSeq)
		if err != nil {
			return 0, Event{}, err
		}
		if seqAfter != seq {
			continue
		}

		if crc32c(dest[:payloadLen]) != wantCRC {
			continue // treat as torn; retry/skip below
		}

		s.lastSeq = target
		return int(payloadLen), Event{}, nil
	}

	// Exhausted retries: skip this sequence and report a torn read.
	s.lastSeq = target
	return 0, Event{Kind: EventTornRead, Seq: target}, nil
}
