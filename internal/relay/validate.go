package relay

// validKey reports whether s is a well-formed device key: exactly 16 decimal
// digits. Keys are opaque beyond that; the relay attaches no meaning to them
// and never verifies that the claimed sender owns the key it names.
func validKey(s string) bool {
	if len(s) != 16 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
