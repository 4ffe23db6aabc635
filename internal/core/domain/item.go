package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

const (
	CategoryComic        = "Comic"
	CategoryGraphicNovel = "Graphic novel"
	CategoryManga        = "Manga"
	CategoryCollectible  = "Collectible"
)

type AvailabilityStatus string

const (
	AvailabilitySoldOut AvailabilityStatus = "sold_out"
	AvailabilityInStore AvailabilityStatus = "in_store"
	AvailabilityPreSale AvailabilityStatus = "pre_sale"
)

type Item struct {
	Code     string
	Category string
	Name     string
	Producer string
	Stock    int
	// AvailableFrom is nil when the item is already in store.
	AvailableFrom *time.Time
	Price         decimal.Decimal
}

// DateOf strips the clock from t, keeping its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate reads a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}

// ArrivesAfter reports whether the item is dated strictly after today.
func (i Item) ArrivesAfter(today time.Time) bool {
	return i.AvailableFrom != nil && i.AvailableFrom.After(DateOf(today))
}

func (i Item) Purchasable(today time.Time) bool {
	return !i.ArrivesAfter(today)
}

func (i Item) Preorderable(today time.Time) bool {
	return i.ArrivesAfter(today)
}

func (i Item) Availability(today time.Time) AvailabilityStatus {
	switch {
	case i.Stock == 0:
		return AvailabilitySoldOut
	case i.ArrivesAfter(today):
		return AvailabilityPreSale
	default:
		return AvailabilityInStore
	}
}
