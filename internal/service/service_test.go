package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/vtupay/wallet-service/internal/logger"
	"github.com/vtupay/wallet-service/internal/model"
	"github.com/vtupay/wallet-service/internal/repo"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestRepo builds a repository on a per-test in-memory SQLite database.
// The redis mock carries no expectations: cache writes fail and are only
// warned, cache reads fail and fall through to the database, same as a
// cold or unreachable redis in production.
func newTestRepo(t *testing.T) repo.RepositoryInterface {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Wallet{}, &model.Transaction{}, &model.OutboxEvent{}))

	rdb, _ := redismock.NewClientMock()
	return repo.NewRepository(db, rdb, &kafka.Writer{}, testLogger(t))
}

func testLogger(t *testing.T) *zap.SugaredLogger {
	log, err := logger.NewLogger()
	assert.NoError(t, err)
	return log
}
