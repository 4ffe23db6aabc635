package handler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/comic-store/internal/core/domain"
	"github.com/rl1809/comic-store/internal/core/service"
)

// ErrQuit is returned by Execute when the operator asks to leave the shell.
var ErrQuit = errors.New("quit")

var errUnbalancedQuotes = errors.New("unbalanced quotes")

type usageError struct {
	usage string
}

func (e usageError) Error() string {
	return "usage: " + e.usage
}

type command struct {
	usage string
	help  string
	run   func(h *CommandHandler, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"items":           {"items", "list the whole catalog", (*CommandHandler).items},
		"item":            {"item <code>", "show one item", (*CommandHandler).item},
		"search-name":     {"search-name <name>", "items with exactly this name", (*CommandHandler).searchName},
		"search-producer": {"search-producer <producer>", "items from this producer", (*CommandHandler).searchProducer},
		"category":        {"category <category>", "items in a category", (*CommandHandler).category},
		"upcoming":        {"upcoming", "items on pre-sale, earliest first", (*CommandHandler).upcoming},
		"add-item": {`add-item <category> <name> <producer> <quantity> <YYYY-MM-DD|null> <price>`,
			"add an item to the catalog", (*CommandHandler).addItem},
		"remove-item": {"remove-item <code>", "drop an item from the catalog", (*CommandHandler).removeItem},
		"register":    {"register <rut> <name> <email> <phone>", "register a user", (*CommandHandler).register},
		"user":        {"user <rut>", "show a user and their history", (*CommandHandler).user},
		"users":       {"users", "list registered users", (*CommandHandler).users},
		"purchase":    {"purchase <rut> <code> <quantity>", "buy an in-store item", (*CommandHandler).purchase},
		"reserve":     {"reserve <rut> <code> <quantity>", "reserve a pre-sale item", (*CommandHandler).reserve},
		"ranking":     {"ranking", "users by units purchased", (*CommandHandler).ranking},
		"snapshot":    {"snapshot", "write the catalog to a new snapshot file", (*CommandHandler).snapshot},
		"help":        {"help", "show this list", (*CommandHandler).help},
		"quit":        {"quit", "save a snapshot and leave", (*CommandHandler).quit},
	}
}

// CommandHandler turns text commands into engine calls and writes the outcome to out.
type CommandHandler struct {
	engine *service.Engine
	out    io.Writer
	prompt string
}

func NewCommandHandler(engine *service.Engine, out io.Writer) *CommandHandler {
	return &CommandHandler{engine: engine, out: out}
}

// WithPrompt sets the text printed before each line is read.
func (h *CommandHandler) WithPrompt(prompt string) *CommandHandler {
	h.prompt = prompt
	return h
}

// Serve executes one command per line until quit, end of input or ctx is done.
// Rejected commands are reported and the loop keeps going.
func (h *CommandHandler) Serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(h.out, h.prompt)
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := h.Execute(ctx, scanner.Text()); errors.Is(err, ErrQuit) {
			return nil
		}
	}
}

// Execute runs a single command line. Failures are written to out and returned.
func (h *CommandHandler) Execute(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		h.printf("error: %s\n", err)
		return err
	}
	if len(args) == 0 {
		return nil
	}

	cmd, ok := commands[strings.ToLower(args[0])]
	if !ok {
		err := fmt.Errorf("unknown command %q", args[0])
		h.printf("error: %s, try help\n", err)
		return err
	}
	if err := cmd.run(h, ctx, args[1:]); err != nil {
		if !errors.Is(err, ErrQuit) {
			h.printf("error: %s\n", errorMessage(err))
		}
		return err
	}
	return nil
}

func (h *CommandHandler) items(ctx context.Context, args []string) error {
	h.printItems(h.engine.Catalog().List())
	return nil
}

func (h *CommandHandler) item(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError{commands["item"].usage}
	}
	item, ok := h.engine.Catalog().FindByCode(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrItemNotFound, args[0])
	}
	h.printItems([]domain.Item{item})
	return nil
}

func (h *CommandHandler) searchName(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError{commands["search-name"].usage}
	}
	h.printItems(h.engine.Catalog().FindByExactName(strings.Join(args, " ")))
	return nil
}

func (h *CommandHandler) searchProducer(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError{commands["search-producer"].usage}
	}
	h.printItems(h.engine.Catalog().FindByProducer(strings.Join(args, " ")))
	return nil
}

func (h *CommandHandler) category(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError{commands["category"].usage}
	}
	h.printItems(h.engine.Catalog().FindByCategory(strings.Join(args, " ")))
	return nil
}

func (h *CommandHandler) upcoming(ctx context.Context, args []string) error {
	h.printItems(h.engine.Catalog().Upcoming(h.engine.Today()))
	return nil
}

func (h *CommandHandler) addItem(ctx context.Context, args []string) error {
	if len(args) != 6 {
		return usageError{commands["add-item"].usage}
	}
	quantity, err := strconv.Atoi(args[3])
	if err != nil {
		return usageError{commands["add-item"].usage}
	}
	var availableFrom *time.Time
	if !strings.EqualFold(args[4], "null") {
		d, err := domain.ParseDate(args[4])
		if err != nil {
			return usageError{commands["add-item"].usage}
		}
		availableFrom = &d
	}
	price, err := decimal.NewFromString(args[5])
	if err != nil {
		return usageError{commands["add-item"].usage}
	}

	code, err := h.engine.AddItem(ctx, service.NewItem{
		Category:      args[0],
		Name:          args[1],
		Producer:      args[2],
		Quantity:      quantity,
		AvailableFrom: availableFrom,
		Price:         price,
	})
	if err != nil {
		return err
	}
	h.printf("ok: added item %s\n", code)
	return nil
}

func (h *CommandHandler) removeItem(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError{commands["remove-item"].usage}
	}
	if !h.engine.RemoveItem(ctx, args[0]) {
		return fmt.Errorf("%w: %s", domain.ErrItemNotFound, args[0])
	}
	h.printf("ok: removed item %s\n", args[0])
	return nil
}

func (h *CommandHandler) register(ctx context.Context, args []string) error {
	if len(args) != 4 {
		return usageError{commands["register"].usage}
	}
	user, err := h.engine.Register(ctx, args[0], args[1], args[2], args[3])
	if err != nil {
		return err
	}
	h.printf("ok: registered %s (%s)\n", user.Name, user.Rut)
	return nil
}

func (h *CommandHandler) user(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usageError{commands["user"].usage}
	}
	user, ok := h.engine.Users().FindByRut(args[0])
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, args[0])
	}

	h.printf("%s | %s | %s | %s\n", user.Rut, user.Name, user.Email, user.Phone)
	if pos, ok := h.engine.Ranking().Position(user.Rut); ok {
		h.printf("ranking position %d with %d units purchased\n", pos, user.TotalPurchased())
	}
	h.printHistory("purchases", user.Purchases)
	h.printHistory("reservations", user.Reservations)
	return nil
}

func (h *CommandHandler) users(ctx context.Context, args []string) error {
	w := tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUT\tNAME\tEMAIL\tPHONE")
	for _, u := range h.engine.Users().List() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Rut, u.Name, u.Email, u.Phone)
	}
	return w.Flush()
}

func (h *CommandHandler) purchase(ctx context.Context, args []string) error {
	rut, code, quantity, err := movementArgs(args, commands["purchase"].usage)
	if err != nil {
		return err
	}
	if err := h.engine.Purchase(ctx, rut, code, quantity); err != nil {
		return err
	}
	h.printf("ok: purchased %d of %s\n", quantity, code)
	return nil
}

func (h *CommandHandler) reserve(ctx context.Context, args []string) error {
	rut, code, quantity, err := movementArgs(args, commands["reserve"].usage)
	if err != nil {
		return err
	}
	if err := h.engine.Reserve(ctx, rut, code, quantity); err != nil {
		return err
	}
	h.printf("ok: reserved %d of %s\n", quantity, code)
	return nil
}

func (h *CommandHandler) ranking(ctx context.Context, args []string) error {
	w := tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tRUT\tNAME\tUNITS")
	for i, entry := range h.engine.Ranking().Snapshot() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", i+1, entry.Rut, entry.Name, entry.Total)
	}
	return w.Flush()
}

func (h *CommandHandler) snapshot(ctx context.Context, args []string) error {
	path, err := h.engine.Finalize(ctx)
	if err != nil {
		return err
	}
	if path == "" {
		h.printf("ok: nothing to snapshot\n")
		return nil
	}
	h.printf("ok: catalog written to %s\n", path)
	return nil
}

func (h *CommandHandler) help(ctx context.Context, args []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	w := tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", commands[name].usage, commands[name].help)
	}
	return w.Flush()
}

func (h *CommandHandler) quit(ctx context.Context, args []string) error {
	return ErrQuit
}

func (h *CommandHandler) printItems(items []domain.Item) {
	if len(items) == 0 {
		h.printf("no items\n")
		return
	}
	today := h.engine.Today()
	w := tabwriter.NewWriter(h.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tCATEGORY\tNAME\tPRODUCER\tSTOCK\tPRICE\tAVAILABILITY")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			item.Code, item.Category, item.Name, item.Producer, item.Stock, item.Price.String(), availability(item, today))
	}
	w.Flush()
}

func (h *CommandHandler) printHistory(title string, entries []domain.HistoryEntry) {
	h.printf("%s: %d\n", title, len(entries))
	for _, e := range entries {
		h.printf("  %s %s x%d\n", e.Item.Code, e.Item.Name, e.Quantity)
	}
}

func (h *CommandHandler) printf(format string, args ...any) {
	fmt.Fprintf(h.out, format, args...)
}

func availability(item domain.Item, today time.Time) string {
	switch item.Availability(today) {
	case domain.AvailabilitySoldOut:
		return "Sold out"
	case domain.AvailabilityPreSale:
		return "Arrives " + item.AvailableFrom.Format(domain.DateLayout)
	default:
		return "In store"
	}
}

func movementArgs(args []string, usage string) (string, string, int, error) {
	if len(args) != 3 {
		return "", "", 0, usageError{usage}
	}
	quantity, err := strconv.Atoi(args[2])
	if err != nil {
		return "", "", 0, usageError{usage}
	}
	return args[0], args[1], quantity, nil
}

// errorMessage maps a rejected operation to the text shown to the operator.
func errorMessage(err error) string {
	var vErr *domain.ValidationError
	var uErr usageError

	switch {
	case errors.As(err, &uErr):
		return uErr.Error()
	case errors.As(err, &vErr):
		return vErr.Error()
	case errors.Is(err, domain.ErrRutInvalid):
		return "rut must look like 12.345.678-9"
	case errors.Is(err, domain.ErrEmailAlreadyRegistered):
		return "email is already registered"
	case errors.Is(err, domain.ErrRutAlreadyRegistered):
		return "rut is already registered"
	case errors.Is(err, domain.ErrItemAlreadyReserved):
		return "item is already reserved"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user not found"
	case errors.Is(err, domain.ErrItemNotFound):
		return "item not found"
	case errors.Is(err, domain.ErrNotYetAvailable):
		return "item has not arrived yet, reserve it instead"
	case errors.Is(err, domain.ErrNotPreorderable):
		return "item is not on pre-sale, purchase it instead"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "not enough stock"
	}
	return "internal error: " + err.Error()
}

// splitArgs splits on whitespace, keeping double-quoted runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		inArg   bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			inArg = true
		case !quoted && (r == ' ' || r == '\t'):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}
	if quoted {
		return nil, errUnbalancedQuotes
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
