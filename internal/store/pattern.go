package store

// matchPattern reports whether s matches pattern, where "*" matches any run
// of characters (including none) and "?" matches exactly one character.
// Unlike path/filepath.Match, "*" here matches across any byte including
// '/', since key names have no path semantics (spec.md §4.2 KEYS).
func matchPattern(pattern, s string) bool {
	return matchFrom(pattern, s, 0, 0)
}

func matchFrom(pattern, s string, pi, si int) bool {
	for pi < len(pattern) {
		switch pattern[pi] {
		case '*':
			// collapse consecutive '*'
			for pi < len(pattern) && pattern[pi] == '*' {
				pi++
			}
			if pi == len(pattern) {
				return true
			}
			for i := si; i <= len(s); i++ {
				if matchFrom(pattern, s, pi, i) {
					return true
				}
			}
			return false
		case '?':
			if si >= len(s) {
				return false
			}
			pi++
			si++
		default:
			if si >= len(s) || s[si] != pattern[pi] {
				return false
			}
			pi++
			si++
		}
	}
	return si == len(s)
}
