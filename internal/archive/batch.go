package archive

// Partition splits keys into consecutive batches of at most size keys,
// preserving order. Every key lands in exactly one batch.
func Partition(keys []int64, size int) [][]int64 {
	if size < 1 {
		size = 1
	}
	out := make([][]int64, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		out = append(out, keys[start:end:end])
	}
	return out
}
