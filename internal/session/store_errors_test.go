package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"invoice-assistant/internal/backend"
	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

func newMockedStore(t *testing.T) (*Store, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	store := NewStore(client, &fakeProfiles{err: backend.ErrNotFound}, &fakeActivity{},
		time.Hour, 8, logger.NewTestLogger(t))
	return store, mock
}

func TestStore_Load_RedisErrorWrapsSentinel(t *testing.T) {
	store, mock := newMockedStore(t)
	mock.ExpectGet("conversation:s1").SetErr(errors.New("connection refused"))

	_, err := store.Load(context.Background(), "s1", "u1")

	assert.ErrorIs(t, err, ErrLoadFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Load_CorruptSnapshotWrapsSentinel(t *testing.T) {
	store, mock := newMockedStore(t)
	mock.ExpectGet("conversation:s1").SetVal("{not json")

	_, err := store.Load(context.Background(), "s1", "u1")

	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestStore_Save_RedisErrorWrapsSentinel(t *testing.T) {
	store, mock := newMockedStore(t)
	mock.Regexp().ExpectSet("conversation:s1", `.*`, time.Hour).
		SetErr(errors.New("connection refused"))

	sess := &models.ConversationSession{ID: "s1", UserID: "u1"}
	err := store.Save(context.Background(), sess)

	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Reset_RedisErrorWrapsSentinel(t *testing.T) {
	store, mock := newMockedStore(t)
	mock.ExpectDel("conversation:s1").SetErr(errors.New("connection refused"))

	err := store.Reset(context.Background(), "s1")

	assert.ErrorIs(t, err, ErrSaveFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
