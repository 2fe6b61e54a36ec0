package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Program is a solved problem kept by a ProgramStore for reuse.
type Program struct {
	Problem   string    `json:"problem"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Key identifies the program's problem in a store.
func (p Program) Key() string {
	return ProblemKey(p.Problem)
}

// ProblemKey hashes a problem after trimming surrounding whitespace.
func ProblemKey(problem string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(problem)))
	return hex.EncodeToString(sum[:])
}
