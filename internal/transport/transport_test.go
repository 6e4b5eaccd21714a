package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSegment(t *testing.T, slotSize, slotCount uint32) *Segment {
	t.Helper()
	mem := NewInMemoryProvider(SegmentSize(slotSize, slotCount))
	seg, err := CreateSegment(mem, slotSize, slotCount)
	require.NoError(t, err)
	return seg
}

// scenario S1: a single publish is observed intact by a single subscriber.
func TestPublishSubscribeRoundTrip(t *testing.T) {
	seg := newTestSegment(t, 64, 4)

	pub, err := BindPublisher(seg)
	require.NoError(t, err)
	defer pub.Close()

	sub, err := BindSubscriber(seg, 0)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, pub.Publish([]byte("hello")))

	dest := make([]byte, 64)
	n, ev, err := sub.Receive(dest)
	require.NoError(t, err)
	require.Equal(t, EventNone, ev.Kind)
	require.Equal(t, "hello", string(dest[:n]))
	require.Equal(t, uint64(1), sub.LastSeq())

	// No new data: a second Receive is a no-op.
	n, ev, err = sub.Receive(dest)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, EventNone, ev.Kind)
}

// scenario S2: slot_count=4, 10 publishes, a subscriber starting from
// scratch should clamp to last_seq=6 and report an overflow event.
func TestSubscriberOverflowClamps(t *testing.T) {
	seg := newTestSegment(t, 64, 4)

	pub, err := BindPublisher(seg)
	require.NoError(t, err)
	defer pub.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, pub.Publish([]byte{byte(i)}))
	}

	sub, err := BindSubscriber(seg, 0)
	require.NoError(t, err)
	defer sub.Close()

	dest := make([]byte, 64)
	n, ev, err := sub.Receive(dest)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Equal(t, EventOverflow, ev.Kind)
	require.Equal(t, uint64(6), sub.LastSeq())
	require.Equal(t, uint64(6), ev.SkippedTo)

	// After the overflow the subscriber resumes normal delivery.
	n, ev, err = sub.Receive(dest)
	require.NoError(t, err)
	require.Equal(t, EventNone, ev.Kind)
	require.Equal(t, byte(6), dest[0]) // write_seq 7 carries the 7th publish's payload, i==6
	require.Equal(t, 1, n)
}

func TestPublishRejectsOversizePayload(t *testing.T) {
	seg := newTestSegment(t, 32, 2) // capacity = 32 - 24 = 8 bytes
	pub, err := BindPublisher(seg)
	require.NoError(t, err)
	defer pub.Close()

	err = pub.Publish(make([]byte, 9))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	// A rejected publish must not advance write_seq.
	writeSeq, err := seg.WriteSeq()
	require.NoError(t, err)
	require.Equal(t, uint64(0), writeSeq)
}

// invariant 3: a second publisher bind fails and leaves state untouched.
func TestBindPublisherIsExclusive(t *testing.T) {
	seg := newTestSegment(t, 64, 4)

	pub, err := BindPublisher(seg)
	require.NoError(t, err)
	defer pub.Close()

	_, err = BindPublisher(seg)
	require.ErrorIs(t, err, ErrPublisherAlreadyBound)

	require.NoError(t, pub.Close())

	pub2, err := BindPublisher(seg)
	require.NoError(t, err)
	require.NoError(t, pub2.Close())
}

func TestCreateSegmentRejectsBadGeometry(t *testing.T) {
	mem := NewInMemoryProvider(SegmentSize(64, 4))

	_, err := CreateSegment(mem, 64, 3) // not a power of two
	require.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = CreateSegment(mem, 16, 4) // slot_size too small for header
	require.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestOpenSegmentRejectsBadMagic(t *testing.T) {
	mem := NewInMemoryProvider(HeaderSize)
	_, err := OpenSegment(mem)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestAccessorTableRegisterAndUnregister(t *testing.T) {
	seg := newTestSegment(t, 64, 4)

	idx, err := seg.Accessor.Register(1234, OwnerSubscriber)
	require.NoError(t, err)

	idx2, err := seg.Accessor.Register(1234, OwnerSubscriber)
	require.NoError(t, err)
	require.Equal(t, idx, idx2) // re-registering the same pid is idempotent

	accessors, err := seg.Accessor.Accessors()
	require.NoError(t, err)
	require.Contains(t, accessors, uint32(1234))

	require.NoError(t, seg.Accessor.Unregister(1234))
	accessors, err = seg.Accessor.Accessors()
	require.NoError(t, err)
	require.NotContains(t, accessors, uint32(1234))
}

func TestAccessorTableExhaustion(t *testing.T) {
	seg := newTestSegment(t, 64, 4)
	for i := uint32(1); i <= AccessorTableSlots; i++ {
		_, err := seg.Accessor.Register(i, OwnerSubscriber)
		require.NoError(t, err)
	}
	_, err := seg.Accessor.Register(AccessorTableSlots+1, OwnerSubscriber)
	require.ErrorIs(t, err, ErrAccessorPoolExhausted)
}

func TestBackoffCapsAndCancels(t *testing.T) {
	b := NewBackoff()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.NoError(t, b.Wait(context.Background()))
	require.Equal(t, 2*time.Millisecond, b.cur)

	capped := &Backoff{min: time.Millisecond, max: 3 * time.Millisecond, cur: 3 * time.Millisecond}
	require.NoError(t, capped.Wait(context.Background()))
	require.Equal(t, capped.max, capped.cur) // stays capped, never exceeds max

	slow := NewBackoff()
	slow.cur = time.Second
	err := slow.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForChangeBlocksUntilData(t *testing.T) {
	seg := newTestSegment(t, 64, 4)
	pub, err := BindPublisher(seg)
	require.NoError(t, err)
	defer pub.Close()
	sub, err := BindSubscriber(seg, 0)
	require.NoError(t, err)
	defer sub.Close()

	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = pub.Publish([]byte("late"))
	}()

	dest := make([]byte, 64)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, ev, err := WaitForChange(ctx, func() (int, Event, error) { return sub.Receive(dest) })
	require.NoError(t, err)
	require.Equal(t, EventNone, ev.Kind)
	require.Equal(t, "late", string(dest[:n]))
}

func TestReadHeaderReflectsState(t *testing.T) {
	seg := newTestSegment(t, 64, 4)
	pub, err := BindPublisher(seg)
	require.NoError(t, err)
	defer pub.Close()
	sub, err := BindSubscriber(seg, 0)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, pub.Publish([]byte("x")))

	hdr, err := seg.ReadHeader()
	require.NoError(t, err)
	require.Equal(t, uint32(64), hdr.SlotSize)
	require.Equal(t, uint32(4), hdr.SlotCount)
	require.Equal(t, uint64(1), hdr.WriteSeq)
	require.Equal(t, uint32(1), hdr.PubCount)
	require.Equal(t, uint32(1), hdr.SubCount)
}
