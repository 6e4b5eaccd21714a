package transport

// Owner identifies which role is attaching to a segment.
type Owner uint32

const (
	OwnerPublisher Owner = 1 << iota
	OwnerSubscriber
	OwnerControlPlane
)

// AccessMode defines how a segment region is protected.
type AccessMode int

const (
	AccessReadOnly AccessMode = iota
	AccessSingleWriter
	AccessMultiWriter
)

// RegionID identifies a guard-protected region within a segment or the log
// ring.
type RegionID uint32

const (
	RegionHeader RegionID = iota
	RegionSlots
	RegionAccessorTable
	RegionLogRing
)

// Policy declares who may access a region and how.
type Policy struct {
	Region     RegionID
	Access     AccessMode
	WriterMask Owner
	ReaderMask Owner
}

// PolicyFor returns the canonical policy for a region. Invariant 3 (at most
// one publisher, any number of subscribers) is enforced here at the type
// level: RegionHeader and RegionSlots are single-writer-by-publisher, and
// RegionAccessorTable is multi-writer because any attached process — a
// publisher, a subscriber, or the control plane enumerating segments —
// registers itself there.
func PolicyFor(region RegionID) Policy {
	switch region {
	case RegionHeader:
		return Policy{
			Region:     region,
			Access:     AccessSingleWriter,
			WriterMask: OwnerPublisher,
			ReaderMask: OwnerPublisher | OwnerSubscriber | OwnerControlPlane,
		}
	case RegionSlots:
		return Policy{
			Region:     region,
			Access:     AccessSingleWriter,
			WriterMask: OwnerPublisher,
			ReaderMask: OwnerSubscriber | OwnerControlPlane,
		}
	case RegionAccessorTable:
		return Policy{
			Region:     region,
			Access:     AccessMultiWriter,
			WriterMask: OwnerPublisher | OwnerSubscriber | OwnerControlPlane,
			ReaderMask: OwnerControlPlane,
		}
	case RegionLogRing:
		return Policy{
			Region:     region,
			Access:     AccessMultiWriter,
			WriterMask: OwnerPublisher | OwnerSubscriber | OwnerControlPlane,
			ReaderMask: OwnerControlPlane,
		}
	default:
		return Policy{Region: region, Access: AccessReadOnly}
	}
}
