package protocol

import "strconv"

// Ordinal renders n with its English ordinal suffix: 1st, 2nd, 3rd, 4th,
// with the 11/12/13 exception (11th, not 11st).
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
