package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/comic-store/internal/core/domain"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(FilePaths{
		Catalog:        filepath.Join(dir, "comics.csv"),
		Users:          filepath.Join(dir, "users.txt"),
		Reservations:   filepath.Join(dir, "reservations.txt"),
		SnapshotPrefix: "comics",
	}, nil), dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileStore_MissingFilesLoadEmpty(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	items, err := store.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	users, err := store.LoadUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	records, err := store.LoadReservations(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFileStore_LoadCatalogSkipsHeaderAndMalformedRows(t *testing.T) {
	store, dir := newTestFileStore(t)
	writeFile(t, filepath.Join(dir, "comics.csv"), ""+
		"tipo,codigo,nombre,autor,cantidad,fechaLlegada,precio\n"+
		"Manga,001,Akira,Otomo,5,null,12990.0\n"+
		"Comic,A-7,Watchmen,Moore,2,2027-01-20,15000\n"+
		"Comic,003,Broken,Nobody,many,null,1\n"+
		"Comic,004,Short,Row\n"+
		"Coleccionable,005,Figura,Bandai,1,not-a-date,9\n")

	items, err := store.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "001", items[0].Code)
	assert.Equal(t, "Manga", items[0].Category)
	assert.Equal(t, 5, items[0].Stock)
	assert.Nil(t, items[0].AvailableFrom)
	assert.True(t, decimal.RequireFromString("12990").Equal(items[0].Price))

	assert.Equal(t, "A-7", items[1].Code)
	require.NotNil(t, items[1].AvailableFrom)
	assert.Equal(t, "2027-01-20", items[1].AvailableFrom.Format(domain.DateLayout))
}

func TestFileStore_SnapshotRoundTrip(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	arrival, err := domain.ParseDate("2027-03-01")
	require.NoError(t, err)
	items := []domain.Item{
		{Code: "001", Category: domain.CategoryManga, Name: "Akira", Producer: "Otomo", Stock: 5, Price: decimal.RequireFromString("12990.50")},
		{Code: "002", Category: domain.CategoryComic, Name: "Saga, Vol. 1", Producer: "Vaughan", Stock: 0, AvailableFrom: &arrival, Price: decimal.Zero},
	}

	path, err := store.SnapshotCatalog(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "comics_2.csv"), path)

	reloaded := NewFileStore(FilePaths{Catalog: path}, nil)
	got, err := reloaded.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, got, len(items))
	for i := range items {
		assert.Equal(t, items[i].Code, got[i].Code)
		assert.Equal(t, items[i].Category, got[i].Category)
		assert.Equal(t, items[i].Name, got[i].Name)
		assert.Equal(t, items[i].Producer, got[i].Producer)
		assert.Equal(t, items[i].Stock, got[i].Stock)
		assert.True(t, items[i].Price.Equal(got[i].Price))
		assert.Equal(t, items[i].AvailableFrom == nil, got[i].AvailableFrom == nil)
	}
	assert.True(t, arrival.Equal(*got[1].AvailableFrom))
}

func TestCreateNextSnapshot_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, SnapshotPath(dir, "comics", 2), "keep me")
	writeFile(t, SnapshotPath(dir, "comics", 4), "keep me too")

	f, err := CreateNextSnapshot(dir, "comics")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, SnapshotPath(dir, "comics", 3), f.Name())

	f, err = CreateNextSnapshot(dir, "comics")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, SnapshotPath(dir, "comics", 5), f.Name())

	data, err := os.ReadFile(SnapshotPath(dir, "comics", 2))
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestFileStore_AppendAndLoadUsers(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendUser(ctx, domain.User{Rut: "12.345.678-5", Name: "Ana Perez", Email: "a@b.com", Phone: "12345678"}))
	require.NoError(t, store.AppendUser(ctx, domain.User{Rut: "9.876.543-k", Name: "Luis Soto", Email: "l@s.cl", Phone: "87654321"}))

	data, err := os.ReadFile(filepath.Join(dir, "users.txt"))
	require.NoError(t, err)
	assert.Equal(t, "12.345.678-5|Ana Perez|a@b.com|12345678\n9.876.543-k|Luis Soto|l@s.cl|87654321\n", string(data))

	users, err := store.LoadUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Luis Soto", users[1].Name)
	assert.Empty(t, users[1].Purchases)
}

func TestFileStore_AppendUserRefusesSeparators(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendUser(ctx, domain.User{Rut: "12.345.678-5", Name: "Ana Perez", Email: "a@b.com", Phone: "12345678"}))
	err := store.AppendUser(ctx, domain.User{Rut: "9.876.543-k", Name: "Luis|Soto", Email: "l@s.cl", Phone: "87654321"})
	assert.ErrorIs(t, err, errUnsafeField)
	err = store.AppendUser(ctx, domain.User{Rut: "9.876.543-k", Name: "Luis\nSoto", Email: "l@s.cl", Phone: "87654321"})
	assert.ErrorIs(t, err, errUnsafeField)

	data, err := os.ReadFile(filepath.Join(dir, "users.txt"))
	require.NoError(t, err)
	assert.Equal(t, "12.345.678-5|Ana Perez|a@b.com|12345678\n", string(data))

	users, err := store.LoadUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "a@b.com", users[0].Email)
}

func TestFileStore_AppendAndLoadReservations(t *testing.T) {
	store, dir := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendReservation(ctx, domain.ReservationRecord{Rut: "12.345.678-5", ItemCode: "002", Quantity: 2}))
	f, err := os.OpenFile(filepath.Join(dir, "reservations.txt"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\nbroken|line\n12.345.678-5|003|x\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, store.AppendReservation(ctx, domain.ReservationRecord{Rut: "9.876.543-k", ItemCode: "002", Quantity: 1}))

	records, err := store.LoadReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ReservationRecord{
		{Rut: "12.345.678-5", ItemCode: "002", Quantity: 2},
		{Rut: "9.876.543-k", ItemCode: "002", Quantity: 1},
	}, records)
}

func TestFileStore_CanceledContext(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.AppendUser(ctx, domain.User{Rut: "x"}), context.Canceled)
	_, err := store.SnapshotCatalog(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
