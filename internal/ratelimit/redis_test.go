package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedis_AllowsAndRecords(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	clock := time.Unix(1_700_000_000, 0)
	l := NewRedis(rdb, Window{Max: 2, Period: time.Minute}, "rl:")
	l.now = func() time.Time { return clock }

	cutoff := strconv.FormatInt(clock.Add(-time.Minute).UnixNano(), 10)
	score := clock.UnixNano()
	mock.ExpectZRemRangeByScore("rl:login:1.2.3.4", "-inf", cutoff).SetVal(0)
	mock.ExpectZCard("rl:login:1.2.3.4").SetVal(1)
	mock.ExpectZAdd("rl:login:1.2.3.4", redis.Z{Score: float64(score), Member: strconv.FormatInt(score, 10)}).SetVal(1)
	mock.ExpectExpire("rl:login:1.2.3.4", time.Minute).SetVal(true)

	ok, err := l.Allow(context.Background(), "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_RejectsFullWindow(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	clock := time.Unix(1_700_000_000, 0)
	l := NewRedis(rdb, Window{Max: 2, Period: time.Minute}, "rl:")
	l.now = func() time.Time { return clock }

	cutoff := strconv.FormatInt(clock.Add(-time.Minute).UnixNano(), 10)
	mock.ExpectZRemRangeByScore("rl:k", "-inf", cutoff).SetVal(0)
	mock.ExpectZCard("rl:k").SetVal(2)

	ok, err := l.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedis_PropagatesErrors(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	l := NewRedis(rdb, Window{Max: 2, Period: time.Minute}, "rl:")
	clock := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return clock }

	cutoff := strconv.FormatInt(clock.Add(-time.Minute).UnixNano(), 10)
	mock.ExpectZRemRangeByScore("rl:k", "-inf", cutoff).SetErr(assert.AnError)

	_, err := l.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, assert.AnError)
}
