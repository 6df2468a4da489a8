package redlock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestLocker_Lock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "order:user:lock:usr_1", "holder-1")

	mock.ExpectSetNX("order:user:lock:usr_1", "holder-1", 30*time.Second).SetVal(true)

	err := locker.Lock(context.Background(), 30*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Lock_AlreadyHeld(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "order:user:lock:usr_1", "holder-1")

	mock.ExpectSetNX("order:user:lock:usr_1", "holder-1", 30*time.Second).SetVal(false)

	err := locker.Lock(context.Background(), 30*time.Second)
	assert.EqualError(t, err, "lock for key order:user:lock:usr_1 is already held")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Unlock_Success(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "order:user:lock:usr_1", "holder-1")

	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	mock.ExpectEval(script, []string{"order:user:lock:usr_1"}, "holder-1").SetVal(int64(1))

	err := locker.Unlock(context.Background())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_Unlock_NotHolder(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "order:user:lock:usr_1", "holder-1")

	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	mock.ExpectEval(script, []string{"order:user:lock:usr_1"}, "holder-1").SetVal(int64(0))

	err := locker.Unlock(context.Background())
	assert.EqualError(t, err, "unlock failed, either lock expired or you're not the lock holder for key order:user:lock:usr_1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLocker_ExtendLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	locker := NewLocker(db, "order:user:lock:usr_1", "holder-1")

	script := "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
	mock.ExpectEval(script, []string{"order:user:lock:usr_1"}, "holder-1", "10000").SetVal(int64(1))

	err := locker.ExtendLock(context.Background(), 10*time.Second)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
