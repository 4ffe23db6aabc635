package domain

type ReservationRecord struct {
	Rut      string
	ItemCode string
	Quantity int
}

type RankEntry struct {
	Rut   string
	Name  string
	Total int
}
