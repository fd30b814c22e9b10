package models

import (
	"strings"
	"time"
)

// BookingStatusConfirmed is the only booking status that produces tasks.
const BookingStatusConfirmed = "Confirmed"

// Booking is the read-only view of a booking consumed from the booking feed.
type Booking struct {
	ID          string    `json:"id"`
	ProviderID  string    `json:"provider_id"`
	Status      string    `json:"status"`
	ServiceType string    `json:"service_type"`
	Date        time.Time `json:"date"`
}

func (b Booking) Confirmed() bool {
	return strings.EqualFold(strings.TrimSpace(b.Status), BookingStatusConfirmed)
}

// Category derives the template category key from the service type: the first
// whitespace separated token, lower-cased.
func (b Booking) Category() string {
	return CategoryKey(b.ServiceType)
}

func CategoryKey(label string) string {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
