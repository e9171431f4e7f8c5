package directory

// DropSharerBit clears a sharer bit without touching the owner, leaving the
// entry in a state Validate must reject.
func DropSharerBit(e *Entry, node int) {
	e.sharers.Clear(uint(node))
}
