package store

// boolToInt converts a boolean into 0/1; both dialects store flags as INTEGER.
func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
