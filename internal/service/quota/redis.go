package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// dayTTL outlives the day by an hour so late readers still see the total.
const dayTTL = 25 * time.Hour

const addLuaScript = `
local key = KEYS[1]
local increment = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])

local newVal = redis.call("INCRBY", key, increment)
if newVal == increment then
    redis.call("EXPIRE", key, ttl)
end
return newVal
`

// RedisCounter shares the daily count between processes. Each day has its
// own key, so rollover needs no reset.
type RedisCounter struct {
	client    *redis.Client
	prefix    string
	addScript *redis.Script
}

func NewRedisCounter(client *redis.Client, prefix string) *RedisCounter {
	if prefix == "" {
		prefix = "quota:sent"
	}
	return &RedisCounter{
		client:    client,
		prefix:    prefix,
		addScript: redis.NewScript(addLuaScript),
	}
}

func (c *RedisCounter) key(day string) string {
	return fmt.Sprintf("%s:%s", c.prefix, day)
}

func (c *RedisCounter) Count(ctx context.Context, day string) (int, error) {
	v, err := c.client.Get(ctx, c.key(day)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}

func (c *RedisCounter) Add(ctx context.Context, day string, n int) (int, error) {
	v, err := c.addScript.Run(ctx, c.client, []string{c.key(day)}, n, int(dayTTL.Seconds())).Int()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", c.key(day), err)
	}
	return v, nil
}
