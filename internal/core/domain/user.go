package domain

// HistoryEntry records an item, as it was at the time, and the quantity moved.
type HistoryEntry struct {
	Item     Item
	Quantity int
}

type User struct {
	Rut          string
	Name         string
	Email        string
	Phone        string
	Reservations []HistoryEntry
	Purchases    []HistoryEntry
}

// TotalPurchased sums the quantities in the purchase history.
func (u User) TotalPurchased() int {
	total := 0
	for _, p := range u.Purchases {
		total += p.Quantity
	}
	return total
}

func (u User) TotalReserved() int {
	total := 0
	for _, r := range u.Reservations {
		total += r.Quantity
	}
	return total
}
