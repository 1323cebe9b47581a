package heap

// bitmap keeps one bit per object slot, packed into words.
type bitmap [bitmapWords]uint64

func (b *bitmap) set(slot int) {
	b[slot/64] |= 1 << (slot % 64)
}

func (b *bitmap) isSet(slot int) bool {
	return b[slot/64]&(1<<(slot%64)) != 0
}

func (b *bitmap) clear() {
	*b = bitmap{}
}
