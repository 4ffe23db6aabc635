package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/comic-store/internal/core/domain"
	"github.com/rl1809/comic-store/internal/logger"
)

const (
	nullDateToken  = "null"
	recordSep      = "|"
	snapshotExt    = ".csv"
	firstSnapshotN = 2
)

var errUnsafeField = errors.New("field contains a record separator or line break")

var catalogHeader = []string{"category", "code", "name", "producer", "quantity", "availableFrom", "price"}

type FilePaths struct {
	Catalog        string
	Users          string
	Reservations   string
	SnapshotDir    string
	SnapshotPrefix string
}

// FileStore persists the catalog as CSV snapshots and users and reservations
// as append-only pipe-separated logs.
type FileStore struct {
	paths FilePaths
	log   *logger.Logger
}

func NewFileStore(paths FilePaths, log *logger.Logger) *FileStore {
	if log == nil {
		log = logger.Nop()
	}
	if paths.SnapshotDir == "" {
		paths.SnapshotDir = filepath.Dir(paths.Catalog)
	}
	return &FileStore{paths: paths, log: log}
}

func (s *FileStore) LoadCatalog(ctx context.Context) ([]domain.Item, error) {
	f, err := openIfExists(s.paths.Catalog)
	if err != nil || f == nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var items []domain.Item
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.warnSkipped(ctx, s.paths.Catalog, line, err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		if line == 1 {
			continue
		}
		item, err := parseItem(record)
		if err != nil {
			s.warnSkipped(ctx, s.paths.Catalog, line, err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func parseItem(record []string) (domain.Item, error) {
	if len(record) < len(catalogHeader) {
		return domain.Item{}, fmt.Errorf("expected %d fields, got %d", len(catalogHeader), len(record))
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(record[4]))
	if err != nil {
		return domain.Item{}, fmt.Errorf("quantity: %w", err)
	}
	var availableFrom *time.Time
	if raw := strings.TrimSpace(record[5]); raw != nullDateToken {
		d, err := domain.ParseDate(raw)
		if err != nil {
			return domain.Item{}, fmt.Errorf("availableFrom: %w", err)
		}
		availableFrom = &d
	}
	price, err := decimal.NewFromString(strings.TrimSpace(record[6]))
	if err != nil {
		return domain.Item{}, fmt.Errorf("price: %w", err)
	}
	return domain.Item{
		Category:      record[0],
		Code:          record[1],
		Name:          record[2],
		Producer:      record[3],
		Stock:         quantity,
		AvailableFrom: availableFrom,
		Price:         price,
	}, nil
}

// SnapshotCatalog writes the items to the next free snapshot file and returns its path.
func (s *FileStore) SnapshotCatalog(ctx context.Context, items []domain.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := CreateNextSnapshot(s.paths.SnapshotDir, s.paths.SnapshotPrefix)
	if err != nil {
		return "", err
	}
	path := f.Name()

	w := csv.NewWriter(f)
	if err := w.Write(catalogHeader); err != nil {
		f.Close()
		return path, fmt.Errorf("write snapshot header: %w", err)
	}
	for _, item := range items {
		if err := w.Write(formatItem(item)); err != nil {
			f.Close()
			return path, fmt.Errorf("write snapshot item %s: %w", item.Code, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return path, fmt.Errorf("flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return path, fmt.Errorf("close snapshot: %w", err)
	}
	return path, nil
}

func formatItem(item domain.Item) []string {
	availableFrom := nullDateToken
	if item.AvailableFrom != nil {
		availableFrom = item.AvailableFrom.Format(domain.DateLayout)
	}
	return []string{
		item.Category,
		item.Code,
		item.Name,
		item.Producer,
		strconv.Itoa(item.Stock),
		availableFrom,
		item.Price.String(),
	}
}

// SnapshotPath names the n-th snapshot of a prefix.
func SnapshotPath(dir, prefix string, n int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", prefix, n, snapshotExt))
}

// CreateNextSnapshot creates the first <prefix>_<n>.csv, n >= 2, that does not exist yet.
// Existing snapshots are never truncated.
func CreateNextSnapshot(dir, prefix string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	for n := firstSnapshotN; ; n++ {
		f, err := os.OpenFile(SnapshotPath(dir, prefix, n), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create snapshot: %w", err)
		}
		return f, nil
	}
}

func (s *FileStore) LoadUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := s.scanRecords(ctx, s.paths.Users, 4, func(parts []string) error {
		users = append(users, domain.User{
			Rut:   parts[0],
			Name:  parts[1],
			Email: parts[2],
			Phone: parts[3],
		})
		return nil
	})
	return users, err
}

func (s *FileStore) AppendUser(ctx context.Context, user domain.User) error {
	return appendLine(ctx, s.paths.Users, user.Rut, user.Name, user.Email, user.Phone)
}

func (s *FileStore) LoadReservations(ctx context.Context) ([]domain.ReservationRecord, error) {
	var records []domain.ReservationRecord
	err := s.scanRecords(ctx, s.paths.Reservations, 3, func(parts []string) error {
		quantity, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			return fmt.Errorf("quantity: %w", err)
		}
		records = append(records, domain.ReservationRecord{
			Rut:      parts[0],
			ItemCode: parts[1],
			Quantity: quantity,
		})
		return nil
	})
	return records, err
}

func (s *FileStore) AppendReservation(ctx context.Context, record domain.ReservationRecord) error {
	return appendLine(ctx, s.paths.Reservations, record.Rut, record.ItemCode, strconv.Itoa(record.Quantity))
}

// scanRecords feeds every pipe-separated line with at least minFields fields to fn.
// Short or rejected lines are logged and skipped.
func (s *FileStore) scanRecords(ctx context.Context, path string, minFields int, fn func([]string) error) error {
	f, err := openIfExists(path)
	if err != nil || f == nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts := strings.Split(text, recordSep)
		if len(parts) < minFields {
			s.warnSkipped(ctx, path, line, fmt.Errorf("expected %d fields, got %d", minFields, len(parts)))
			continue
		}
		if err := fn(parts[:minFields]); err != nil {
			s.warnSkipped(ctx, path, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) warnSkipped(ctx context.Context, path string, line int, err error) {
	ctx = s.log.WithFields(ctx, map[string]any{"file": path, "line": line, "reason": err.Error()})
	s.log.Warn(ctx, "skipping malformed record")
}

func openIfExists(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func appendLine(ctx context.Context, path string, fields ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, field := range fields {
		if strings.ContainsAny(field, recordSep+"\r\n") {
			return fmt.Errorf("%w: %q", errUnsafeField, field)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := fmt.Fprintln(f, strings.Join(fields, recordSep)); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}
