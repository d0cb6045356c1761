package account

const minPasswordLength = 8

// ValidatePassword checks password against the composition rules. Rules are
// checked in order and the first failure is returned.
func ValidatePassword(password string) error {
	for i := 0; i < len(password); i++ {
		if c := password[i]; c < 0x20 || c > 0x7e {
			return &PolicyError{
				Code:    InvalidCharacters,
				Message: "Your password contains invalid letters",
			}
		}
	}

	if len(password) < minPasswordLength {
		return &PolicyError{
			Code:    TooShort,
			Message: "Your password is too short. You need at least 8 letters.",
		}
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for i := 0; i < len(password); i++ {
		switch c := password[i]; {
		case 'a' <= c && c <= 'z':
			hasLower = true
		case 'A' <= c && c <= 'Z':
			hasUpper = true
		case '0' <= c && c <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	kinds := 0
	for _, ok := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if ok {
			kinds++
		}
	}
	if kinds < 3 {
		return &PolicyError{
			Code:    InsufficientComplexity,
			Message: "Your password should contain at least three of lower letters, upper letters, numbers and symbols",
		}
	}

	return nil
}
