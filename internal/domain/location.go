package domain

// Location is a resolved geographic point for a bank/country code.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name"`
}

// ValidLocationCode reports whether a code is worth resolving: exactly two
// ASCII letters. Anything else is rejected before any network I/O happens.
func ValidLocationCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < 'a' || c > 'z') {
			return false
		}
	}
	return true
}
