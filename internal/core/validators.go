package core

import (
	"math"
	"regexp"
)

var rollNoPattern = regexp.MustCompile(`^UNI\d{7}$`)

// ValidateRollNo reports whether rollNo is a university roll number (UNI + 7 digits).
func ValidateRollNo(rollNo string) bool { return rollNoPattern.MatchString(rollNo) }

// ValidateAmount reports whether amount is a finite number greater than zero.
func ValidateAmount(amount float64) bool {
	return amount > 0 && !math.IsInf(amount, 1)
}
