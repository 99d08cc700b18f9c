package models

import "regexp"

// CNPLength is the number of digits in a national identifier
const CNPLength = 13

var cnpPattern = regexp.MustCompile(`^\d{13}$`)

// Voter represents a registered voter
type Voter struct {
	CNP          string `json:"cnp" db:"cnp"`
	PasswordHash string `json:"-" db:"password"`
	HasVoted     bool   `json:"has_voted" db:"has_voted"`
}

// ValidCNP reports whether s is a well-formed national identifier
func ValidCNP(s string) bool {
	return cnpPattern.MatchString(s)
}
