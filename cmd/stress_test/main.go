package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rl1809/comic-store/internal/adapter/storage"
	"github.com/rl1809/comic-store/internal/config"
	"github.com/rl1809/comic-store/internal/core/domain"
	"github.com/rl1809/comic-store/internal/core/service"
	"github.com/rl1809/comic-store/internal/core/validation"
	"github.com/rl1809/comic-store/internal/logger"
)

type options struct {
	stock     int
	users     int
	parallel  int
	redisAddr string
}

func main() {
	var opts options
	flag.IntVar(&opts.stock, "stock", 20, "initial stock of the contested item")
	flag.IntVar(&opts.users, "users", 50, "number of buyers, one unit each")
	flag.IntVar(&opts.parallel, "parallel", 16, "maximum concurrent purchases")
	flag.StringVar(&opts.redisAddr, "redis", "", "optional redis address to mirror stock into")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "stress", Format: logger.FormatConsole})
	if err := run(context.Background(), opts); err != nil {
		logg.Error(context.Background(), "stress test failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	engineOpts := service.Options{Validator: validation.New(), Logger: logger.Nop()}
	if opts.redisAddr != "" {
		rdb, err := storage.NewRedisClient(ctx, config.RedisConfig{Address: opts.redisAddr, PoolSize: opts.parallel})
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		engineOpts.Cache = storage.NewRedisAdapter(rdb)
	}
	engine := service.NewEngine(engineOpts)

	code, err := engine.AddItem(ctx, service.NewItem{
		Category: domain.CategoryComic,
		Name:     "Stress Issue #1",
		Producer: "Load Test",
		Quantity: opts.stock,
		Price:    decimal.NewFromInt(1000),
	})
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}

	ruts := make([]string, opts.users)
	for i := range ruts {
		ruts[i] = fmt.Sprintf("%d.%03d.%03d-%d", 10+i/1000000%90, i/1000%1000, i%1000, i%10)
		if _, err := engine.Register(ctx, ruts[i], fmt.Sprintf("buyer %d", i), fmt.Sprintf("buyer%d@stress.test", i), "12345678"); err != nil {
			return fmt.Errorf("register buyer %d: %w", i, err)
		}
	}

	var successCount, soldOutCount atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.parallel)
	start := time.Now()

	for _, rut := range ruts {
		g.Go(func() error {
			err := engine.Purchase(gctx, rut, code, 1)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("unexpected purchase failure: %w", err)
	}
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()
	item, _ := engine.Catalog().FindByCode(code)
	expectedSuccess := min(opts.stock, opts.users)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", opts.stock)
	fmt.Printf("Total Requests:   %d\n", opts.users)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold out:         %d\n", soldOut)
	fmt.Printf("Final Stock:      %d\n", item.Stock)
	fmt.Printf("Ranked Buyers:    %d\n", engine.Ranking().Len())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if int(success) != expectedSuccess || int(soldOut) != opts.users-expectedSuccess || item.Stock != opts.stock-expectedSuccess {
		return fmt.Errorf("expected %d sold and %d rejected, got %d and %d", expectedSuccess, opts.users-expectedSuccess, success, soldOut)
	}
	fmt.Printf("PASS: exactly %d units sold, stock never went negative\n", expectedSuccess)
	return nil
}
