// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/memeswap/internal/domain"
	"github.com/rovshanmuradov/memeswap/internal/storage"
	"github.com/rovshanmuradov/memeswap/internal/storage/models"
)

const migrationLockID = 101

// gormLogger реализует интерфейс logger.Interface для GORM
type gormLogger struct {
	zapLogger     *zap.Logger
	logLevel      logger.LogLevel
	slowThreshold time.Duration
}

// newGormLogger создает новый логгер для GORM
func newGormLogger(zapLogger *zap.Logger) logger.Interface {
	return &gormLogger{
		zapLogger:     zapLogger,
		logLevel:      logger.Warn,
		slowThreshold: 200 * time.Millisecond,
	}
}

// LogMode реализация интерфейса logger.Interface
func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.logLevel = level
	return &newLogger
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Info {
		l.zapLogger.Sugar().Infof(msg, data...)
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Warn {
		l.zapLogger.Sugar().Warnf(msg, data...)
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.logLevel >= logger.Error {
		l.zapLogger.Sugar().Errorf(msg, data...)
	}
}

// Trace реализация интерфейса logger.Interface
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
	}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.zapLogger.Error("trace", append(fields, zap.Error(err))...)
	case elapsed > l.slowThreshold && l.logLevel >= logger.Warn:
		l.zapLogger.Warn("slow query", fields...)
	case l.logLevel >= logger.Info:
		l.zapLogger.Debug("trace", fields...)
	}
}

// postgresStorage реализует интерфейс Storage
type postgresStorage struct {
	db     *gorm.DB
	logger *zap.Logger
}

var _ storage.Storage = (*postgresStorage)(nil)

func NewStorage(dsn string, zapLogger *zap.Logger) (storage.Storage, error) {
	gormLogger := newGormLogger(zapLogger.Named("gorm"))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &postgresStorage{
		db:     db,
		logger: zapLogger.Named("postgres"),
	}, nil
}

// RunMigrations использует GORM AutoMigrate под advisory lock
func (p *postgresStorage) RunMigrations(ctx context.Context) error {
	conn, err := p.db.DB()
	if err != nil {
		return err
	}
	// advisory lock держится на соединении, поэтому всё в одной сессии
	sqlConn, err := conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer sqlConn.Close()

	var lockObtained bool
	if err := sqlConn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockID).Scan(&lockObtained); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !lockObtained {
		return fmt.Errorf("another migration is in progress")
	}
	defer sqlConn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockID)

	err = p.db.WithContext(ctx).AutoMigrate(
		&models.Token{},
		&models.Swap{},
		&models.WatchlistItem{},
		&models.PaperHolding{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	p.logger.Info("migrations applied")
	return nil
}

func (p *postgresStorage) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *postgresStorage) ListTokens(ctx context.Context, f storage.TokenFilter) ([]domain.TrackedToken, error) {
	q := p.db.WithContext(ctx).Model(&models.Token{})
	if f.Category != "" {
		q = q.Where("category = ?", string(f.Category))
	}
	if f.Chain != "" {
		q = q.Where("chain = ?", string(f.Chain))
	}

	var rows []models.Token
	if err := q.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TrackedToken, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

func (p *postgresStorage) GetToken(ctx context.Context, address string) (*domain.TrackedToken, error) {
	var row models.Token
	err := p.db.WithContext(ctx).Where("address = ?", address).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t := row.ToDomain()
	return &t, nil
}

func (p *postgresStorage) UpsertToken(ctx context.Context, t domain.TrackedToken) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "symbol", "logo_url", "category", "chain", "pair_address", "updated_at"}),
	}).Create(models.TokenFromDomain(t)).Error
}

func (p *postgresStorage) UpdateATH(ctx context.Context, address string, price float64) error {
	res := p.db.WithContext(ctx).Model(&models.Token{}).
		Where("address = ?", address).
		Updates(map[string]interface{}{"ath_price": price, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *postgresStorage) InsertSwap(ctx context.Context, rec *domain.SwapRecord) error {
	row := models.SwapFromDomain(rec)
	if err := p.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("swap %s: %w", rec.TxSignature, domain.ErrDuplicate)
		}
		return err
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

func (p *postgresStorage) ListSwaps(ctx context.Context, f domain.HistoryFilter) ([]domain.SwapRecord, error) {
	q := p.db.WithContext(ctx).Model(&models.Swap{})
	if f.WalletAddress != "" && f.WalletAddress != domain.WalletAll {
		q = q.Where("wallet_address = ?", f.WalletAddress)
	}
	if f.TokenAddress != "" {
		q = q.Where("token_address = ?", f.TokenAddress)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []models.Swap
	if err := q.Order("created_at desc").Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func (p *postgresStorage) ListSwapsByStatus(ctx context.Context, status domain.SwapStatus, limit int) ([]domain.SwapRecord, error) {
	q := p.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Swap
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toRecords(rows), nil
}

func (p *postgresStorage) UpdateSwapStatus(ctx context.Context, txSignature string, status domain.SwapStatus) error {
	res := p.db.WithContext(ctx).Model(&models.Swap{}).
		Where("tx_signature = ?", txSignature).
		Updates(map[string]interface{}{"status": string(status), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *postgresStorage) AddWatch(ctx context.Context, wallet, token string) error {
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.WatchlistItem{WalletAddress: wallet, TokenAddress: token}).Error
}

func (p *postgresStorage) RemoveWatch(ctx context.Context, wallet, token string) error {
	return p.db.WithContext(ctx).
		Where("wallet_address = ? AND token_address = ?", wallet, token).
		Delete(&models.WatchlistItem{}).Error
}

func (p *postgresStorage) ListWatch(ctx context.Context, wallet string) ([]string, error) {
	var tokens []string
	err := p.db.WithContext(ctx).Model(&models.WatchlistItem{}).
		Where("wallet_address = ?", wallet).
		Order("created_at asc").
		Pluck("token_address", &tokens).Error
	return tokens, err
}

func (p *postgresStorage) ListPaper(ctx context.Context, owner string) ([]domain.PaperHolding, error) {
	var rows []models.PaperHolding
	err := p.db.WithContext(ctx).
		Where("owner_address = ?", owner).
		Order("created_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.PaperHolding, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

func (p *postgresStorage) PutPaper(ctx context.Context, owner string, h domain.PaperHolding) error {
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_address"}, {Name: "token_address"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"allocation": h.Allocation,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&models.PaperHolding{OwnerAddress: owner, TokenAddress: h.TokenAddress, Allocation: h.Allocation}).Error
}

func (p *postgresStorage) RemovePaper(ctx context.Context, owner, token string) error {
	return p.db.WithContext(ctx).
		Where("owner_address = ? AND token_address = ?", owner, token).
		Delete(&models.PaperHolding{}).Error
}

func toRecords(rows []models.Swap) []domain.SwapRecord {
	out := make([]domain.SwapRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}
