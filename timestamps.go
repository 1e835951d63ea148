package internode

// Message headers carry only the lowest 32 bits of the sender's epoch-millis
// construction timestamp. The receiver reconstructs the full value against its
// own clock: the local high bits are grafted onto the remote low bits, then
// adjusted by one wrap period if the result lands implausibly far from now.
// The tolerance is half a wrap period (~24.8 days), far beyond any credible
// clock skew between peers.

const timestampWrapPeriod = int64(1) << 32

// reconstructTimestampMillis rebuilds the sender's epoch-millis timestamp
// from its transmitted low 32 bits and the receiver's current epoch millis.
func reconstructTimestampMillis(nowMillis int64, lowBits uint32) int64 {
	t := nowMillis&^(timestampWrapPeriod-1) | int64(lowBits)
	switch {
	case t-nowMillis > timestampWrapPeriod/2:
		// Sender's low bits have not wrapped yet but ours have.
		t -= timestampWrapPeriod
	case nowMillis-t > timestampWrapPeriod/2:
		// Sender's low bits wrapped before ours.
		t += timestampWrapPeriod
	}
	return t
}
