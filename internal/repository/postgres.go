package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/cobia/billing/internal/models"
	"github.com/cobia/billing/pkg/logger"
)

// PostgresDB is the gorm-backed Store. Conn is either the pool or, inside
// Transaction, the transaction handle.
type PostgresDB struct {
	logger *logger.Logger

	Conn *gorm.DB
}

// gormWriter forwards gorm's own log lines to zap.
type gormWriter struct {
	logger *logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.SugaredLogger.Warnf(format, args...)
}

func NewPostgresDB(user, password, dbname, host string, port int, sslMode string, logger *logger.Logger) (*PostgresDB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		host, user, password, dbname, port, sslMode)
	return OpenPostgres(dsn, logger)
}

// OpenPostgres connects with a ready DSN and migrates the schema.
func OpenPostgres(dsn string, logger *logger.Logger) (*PostgresDB, error) {
	gl := gormLogger.New(
		gormWriter{logger: logger},
		gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gl, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Subscription{},
		&models.PendingPayment{},
		&models.Payment{},
		&models.BTCTransaction{},
		&models.Wallet{},
		&models.Report{},
		&models.Transaction{},
		&models.Alert{},
		&models.AppLock{},
	); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL!")
	return &PostgresDB{Conn: db, logger: logger}, nil
}

func (db *PostgresDB) Close() error {
	sqlDB, err := db.Conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

func (db *PostgresDB) Transaction(ctx context.Context, fn func(tx models.Store) error) error {
	return db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&PostgresDB{logger: db.logger, Conn: tx})
	})
}

func (db *PostgresDB) Users() models.UserRepository {
	return &pgUsers{conn: db.Conn}
}

func (db *PostgresDB) PendingPayments() models.PendingPaymentRepository {
	return &pgPendingPayments{conn: db.Conn}
}

func (db *PostgresDB) Payments() models.PaymentRepository {
	return &pgPayments{conn: db.Conn}
}

func (db *PostgresDB) Subscriptions() models.SubscriptionRepository {
	return &pgSubscriptions{conn: db.Conn}
}

func (db *PostgresDB) BTCTransactions() models.BTCTransactionRepository {
	return &pgBTCTransactions{conn: db.Conn}
}

func (db *PostgresDB) Locks() models.LockRepository {
	return &pgLocks{conn: db.Conn}
}

// translate maps gorm errors onto the repository sentinels.
func translate(err error, op string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("failed to %s: %w", op, models.ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
