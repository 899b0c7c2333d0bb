package enums

import "fmt"

// ReservationState tracks the lifecycle of a reserved debit.
// Refunds are only legal from the reserved state, which is what makes the
// refund path idempotent: a second refund finds no reserved row to flip.
type ReservationState string

const (
	ReservationStateReserved  ReservationState = "reserved"
	ReservationStateCommitted ReservationState = "committed"
	ReservationStateRefunded  ReservationState = "refunded"
)

var validReservationStates = []ReservationState{
	ReservationStateReserved,
	ReservationStateCommitted,
	ReservationStateRefunded,
}

// IsValid reports whether the value matches the reservation lifecycle enum.
func (s ReservationState) IsValid() bool {
	for _, candidate := range validReservationStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseReservationState converts raw input into ReservationState.
func ParseReservationState(value string) (ReservationState, error) {
	for _, candidate := range validReservationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation state %q", value)
}
