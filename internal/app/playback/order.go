package playback

// forwardIndex returns the index one step forward from i in a playlist of length n.
// ok is false at the end of the playlist when the mode does not wrap.
// RepeatOne only matters on natural completion, so it steps like RepeatOff here.
func forwardIndex(i, n int, mode RepeatMode) (int, bool) {
	if n <= 0 {
		return -1, false
	}
	if mode == RepeatAll {
		return (i + 1) % n, true
	}
	if i+1 >= n {
		return i, false
	}
	return i + 1, true
}

// backwardIndex returns the index one step back from i in a playlist of length n.
// ok is false at index 0 when the mode does not wrap.
func backwardIndex(i, n int, mode RepeatMode) (int, bool) {
	if n <= 0 {
		return -1, false
	}
	if mode == RepeatAll {
		return (i - 1 + n) % n, true
	}
	if i-1 < 0 {
		return i, false
	}
	return i - 1, true
}
