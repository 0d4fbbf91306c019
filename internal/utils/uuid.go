package utils

import "github.com/google/uuid"

// UUIDGenerator produces operation identifiers. UUIDv7 is preferred: its
// time-ordered prefix means identifiers sort in creation order, which lines
// up with the log's FIFO draining.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}
