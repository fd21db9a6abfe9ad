package packet

// QueueState is scratch used while the packet sits in the queueing stage.
// Nothing outside queueing reads it and Reset clears it.
type QueueState struct {
	L1Groups  uint32
	L2Groups  uint32
	McGroup   uint16
	McPipe    uint8
	CopyCount uint16
	C2C       bool
}

// NextCopy returns the id of the next multicast copy of base and bumps the
// copy counter.
func (q *QueueState) NextCopy(base uint32) ID {
	q.CopyCount++
	if q.C2C {
		return MulticastC2C(base, q.McPipe, q.CopyCount)
	}
	return MulticastCopy(base, q.McPipe, q.CopyCount)
}
