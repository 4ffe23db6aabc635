package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/comic-store/internal/config"
)

const (
	stockKeyPrefix  = "comicstore:stock:"
	rankingKey      = "comicstore:ranking:purchases"
	reservationsKey = "comicstore:reservations"
)

var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 0
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// NewRedisClient builds a client from config and verifies connectivity.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisAdapter) SetStock(ctx context.Context, itemCode string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+itemCode, quantity, 0).Err()
}

func (r *RedisAdapter) DecrementStock(ctx context.Context, itemCode string, quantity int) (bool, error) {
	result, err := decrementStockScript.Run(ctx, r.client, []string{stockKeyPrefix + itemCode}, quantity).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) DeleteStock(ctx context.Context, itemCode string) error {
	return r.client.Del(ctx, stockKeyPrefix+itemCode).Err()
}

func (r *RedisAdapter) SetPurchaseTotal(ctx context.Context, rut string, total int) error {
	return r.client.ZAdd(ctx, rankingKey, redis.Z{Score: float64(total), Member: rut}).Err()
}

func (r *RedisAdapter) PushReservation(ctx context.Context, rut, itemCode string, quantity int) error {
	entry := rut + recordSep + itemCode + recordSep + strconv.Itoa(quantity)
	return r.client.RPush(ctx, reservationsKey, entry).Err()
}
