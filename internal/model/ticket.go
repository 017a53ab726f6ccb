package model

import (
	"fmt"
	"sort"
)

// The ticket universe is the closed range [MinTicketNumber, MaxTicketNumber].
// No record exists for a ticket that was never touched; absence means the
// ticket is available.
const (
	MinTicketNumber TicketNumber = 0
	MaxTicketNumber TicketNumber = 9999

	// TicketUniverseSize is the number of distinct ticket numbers on sale.
	TicketUniverseSize = int(MaxTicketNumber-MinTicketNumber) + 1
)

// TicketNumber identifies a lottery ticket.  The value itself is the
// identity; there is no separate surrogate key.
type TicketNumber int

// Valid reports whether n lies inside the ticket universe.
func (n TicketNumber) Valid() bool {
	return n >= MinTicketNumber && n <= MaxTicketNumber
}

// Validate returns an error describing why n is outside the universe.
func (n TicketNumber) Validate() error {
	if !n.Valid() {
		return fmt.Errorf("ticket number %d out of range [%d, %d]", int(n), int(MinTicketNumber), int(MaxTicketNumber))
	}
	return nil
}

// UniqueTickets removes duplicates from tickets while keeping the order in
// which each number first appears.
func UniqueTickets(tickets []TicketNumber) []TicketNumber {
	out := make([]TicketNumber, 0, len(tickets))
	seen := make(map[TicketNumber]struct{}, len(tickets))
	for _, n := range tickets {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// SortTickets sorts tickets ascending in place and returns the slice.
func SortTickets(tickets []TicketNumber) []TicketNumber {
	sort.Slice(tickets, func(i, j int) bool { return tickets[i] < tickets[j] })
	return tickets
}
