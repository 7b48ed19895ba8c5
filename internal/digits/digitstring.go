package digits

import "unicode/utf8"

// DigitString is a recognized card number fragment.
type DigitString string

func (d DigitString) String() string { return string(d) }

// Len returns the number of characters.
func (d DigitString) Len() int { return utf8.RuneCountInString(string(d)) }

// IsNumeric reports whether every character is an ASCII digit.
func (d DigitString) IsNumeric() bool {
	if d == "" {
		return false
	}
	for _, r := range string(d) {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Luhn reports whether the string passes the Luhn checksum used by card
// numbers. Non-numeric or single-digit strings never pass.
func (d DigitString) Luhn() bool {
	if !d.IsNumeric() || len(d) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(d) - 1; i >= 0; i-- {
		n := int(d[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}
