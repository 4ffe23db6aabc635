package handler

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/comic-store/internal/core/domain"
	"github.com/rl1809/comic-store/internal/core/service"
	"github.com/rl1809/comic-store/internal/core/validation"
)

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (*CommandHandler, *service.Engine, *bytes.Buffer) {
	t.Helper()
	engine := service.NewEngine(service.Options{
		Validator: validation.New(),
		Now:       func() time.Time { return fixedNow },
	})
	out := &bytes.Buffer{}
	return NewCommandHandler(engine, out), engine, out
}

func run(t *testing.T, h *CommandHandler, out *bytes.Buffer, line string) string {
	t.Helper()
	out.Reset()
	h.Execute(context.Background(), line)
	return out.String()
}

func TestSplitArgs(t *testing.T) {
	args, err := splitArgs(`add-item Manga "One Piece" Shueisha 3  null 4990`)
	require.NoError(t, err)
	assert.Equal(t, []string{"add-item", "Manga", "One Piece", "Shueisha", "3", "null", "4990"}, args)

	args, err = splitArgs(`register 12.345.678-5 "" a@b.com 12345678`)
	require.NoError(t, err)
	assert.Equal(t, "", args[2])

	_, err = splitArgs(`search-name "One Piece`)
	assert.ErrorIs(t, err, errUnbalancedQuotes)

	args, err = splitArgs("   ")
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestCommandHandler_PurchaseFlow(t *testing.T) {
	h, engine, out := newTestHandler(t)

	assert.Contains(t, run(t, h, out, `add-item Manga "One Piece" Shueisha 10 null 4990`), "ok: added item 001")
	assert.Contains(t, run(t, h, out, `register 12.345.678-5 "ana perez" ana@mail.com 12345678`), "registered Ana Perez")
	assert.Contains(t, run(t, h, out, "purchase 12.345.678-5 001 3"), "ok: purchased 3 of 001")

	item, _ := engine.Catalog().FindByCode("001")
	assert.Equal(t, 7, item.Stock)

	ranking := run(t, h, out, "ranking")
	assert.Contains(t, ranking, "12.345.678-5")
	assert.Contains(t, ranking, "Ana Perez")

	user := run(t, h, out, "user 12.345.678-5")
	assert.Contains(t, user, "ranking position 1 with 3 units purchased")
	assert.Contains(t, user, "001 One Piece x3")
}

func TestCommandHandler_MapsErrorsToMessages(t *testing.T) {
	h, _, out := newTestHandler(t)
	run(t, h, out, `add-item Comic Watchmen DC 1 null 9990`)
	run(t, h, out, `add-item Comic "Absolute Batman" DC 5 2026-12-01 12990`)
	run(t, h, out, `register 12.345.678-5 ana ana@mail.com 12345678`)

	cases := []struct {
		line string
		want string
	}{
		{"purchase 1.111.111-1 001 1", "user not found"},
		{"purchase 12.345.678-5 999 1", "item not found"},
		{"purchase 12.345.678-5 001 2", "not enough stock"},
		{"purchase 12.345.678-5 002 1", "has not arrived yet"},
		{"reserve 12.345.678-5 001 1", "not on pre-sale"},
		{"purchase 12.345.678-5 001 -1", `field "quantity" must not be negative`},
		{"purchase 12.345.678-5 001 many", "usage: purchase"},
		{"register 12345678-5 luis l@mail.com 12345678", "rut must look like"},
		{"register 9.876.543-k luis ana@mail.com 12345678", "email is already registered"},
		{"register 12.345.678-5 luis l@mail.com 12345678", "rut is already registered"},
		{"register 9.876.543-k luis l@mail.com 1234", "8 digits"},
		{"add-item Comic X DC 1 tomorrow 10", "usage: add-item"},
		{"remove-item 404", "item not found"},
		{"teleport", `unknown command "teleport"`},
	}
	for _, tc := range cases {
		t.Run(tc.line, func(t *testing.T) {
			got := run(t, h, out, tc.line)
			assert.True(t, strings.HasPrefix(got, "error: "), got)
			assert.Contains(t, got, tc.want)
		})
	}
}

func TestCommandHandler_ReserveAndListings(t *testing.T) {
	h, engine, out := newTestHandler(t)
	run(t, h, out, `add-item Comic "Absolute Batman" DC 5 2026-12-01 12990`)
	run(t, h, out, `add-item Manga Akira Kodansha 0 null 15990`)
	run(t, h, out, `register 12.345.678-5 ana ana@mail.com 12345678`)

	assert.Contains(t, run(t, h, out, "reserve 12.345.678-5 001 2"), "ok: reserved 2 of 001")
	assert.True(t, engine.Catalog().IsReserved("001"))

	items := run(t, h, out, "items")
	assert.Contains(t, items, "Arrives 2026-12-01")
	assert.Contains(t, items, "Sold out")
	assert.Less(t, strings.Index(items, "Absolute Batman"), strings.Index(items, "Akira"))

	upcoming := run(t, h, out, "upcoming")
	assert.Contains(t, upcoming, "Absolute Batman")
	assert.NotContains(t, upcoming, "Akira")

	assert.Contains(t, run(t, h, out, "search-producer dc"), "Absolute Batman")
	assert.Contains(t, run(t, h, out, "search-name absolute batman"), "001")
	assert.Contains(t, run(t, h, out, "category manga"), "Akira")
	assert.Contains(t, run(t, h, out, "category collectible"), "no items")
	assert.Contains(t, run(t, h, out, "users"), "12.345.678-5")

	assert.Contains(t, run(t, h, out, "remove-item 002"), "ok: removed item 002")
	_, ok := engine.Catalog().FindByCode("002")
	assert.False(t, ok)
}

func TestCommandHandler_SnapshotWithoutStore(t *testing.T) {
	h, _, out := newTestHandler(t)
	assert.Contains(t, run(t, h, out, "snapshot"), "nothing to snapshot")
}

func TestCommandHandler_Serve(t *testing.T) {
	h, engine, out := newTestHandler(t)
	in := strings.NewReader(strings.Join([]string{
		`add-item Manga Akira Kodansha 2 null 15990`,
		``,
		`purchase nobody 001 1`,
		`help`,
		`quit`,
		`add-item Manga Ignored Kodansha 2 null 15990`,
	}, "\n"))

	require.NoError(t, h.WithPrompt("> ").Serve(context.Background(), in))

	assert.Equal(t, 1, engine.Catalog().Len())
	assert.Contains(t, out.String(), "user not found")
	assert.Contains(t, out.String(), "purchase <rut> <code> <quantity>")
	assert.Contains(t, out.String(), "> ")
}

func TestCommandHandler_ServeStopsAtEOFAndCancel(t *testing.T) {
	h, engine, _ := newTestHandler(t)
	require.NoError(t, h.Serve(context.Background(), strings.NewReader("add-item Manga Akira Kodansha 2 null 15990")))
	assert.Equal(t, 1, engine.Catalog().Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.Serve(ctx, strings.NewReader("add-item Manga Other Kodansha 2 null 15990\n"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, engine.Catalog().Len())
}

func TestErrorMessageFallsBack(t *testing.T) {
	assert.Equal(t, "item not found", errorMessage(domain.ErrItemNotFound))
	assert.Contains(t, errorMessage(assert.AnError), "internal error")
}
