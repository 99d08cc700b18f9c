package models

// Candidate represents a person standing in the election
type Candidate struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Party       string `json:"party" db:"party"`
	Description string `json:"description" db:"description"`
	Image       string `json:"image" db:"image"`
	Votes       int    `json:"votes" db:"votes"`
}

// Finalist is a candidate that reached the top two after a simulation run
type Finalist struct {
	Name  string `json:"name"`
	Votes int    `json:"votes"`
}
