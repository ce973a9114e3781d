package work

// DefaultMaxDeliveryCount is how many deliveries a message gets before the
// worker gives up on it and moves it to the dead-letter queue.
const DefaultMaxDeliveryCount = 10

// ShouldQuarantine reports whether a message has exhausted its processing
// attempts. Strictly greater: a message is processed on its maxDeliveryCount-th
// delivery and quarantined on the one after.
func ShouldQuarantine(receiveCount, maxDeliveryCount int) bool {
	return receiveCount > maxDeliveryCount
}
