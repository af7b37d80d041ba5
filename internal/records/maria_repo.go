package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MariaRepo хранит рекорды в MariaDB/MySQL
type MariaRepo struct {
	db *sql.DB
}

// NewMariaRepo подключается по DSN вида user:pass@tcp(host:3306)/dogs
func NewMariaRepo(ctx context.Context, dsn string) (*MariaRepo, error) {
	db, err := sql.Open("mysql", dsn+dsnParams(dsn))
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	repo := &MariaRepo{db: db}
	if err := repo.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return repo, nil
}

// dsnParams добавляет параметры, без которых не сканируется TIMESTAMP
func dsnParams(dsn string) string {
	if strings.Contains(dsn, "?") {
		return ""
	}
	return "?charset=utf8mb4&parseTime=True&loc=UTC"
}

func (m *MariaRepo) createTable(ctx context.Context) error {
	const createRecordsTable = `
	CREATE TABLE IF NOT EXISTS records (
		dog_id BIGINT UNSIGNED PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		score INT NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		INDEX idx_score_name (score DESC, name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

	_, err := m.db.ExecContext(ctx, createRecordsTable)
	return err
}

// Upsert обновляет запись, только если новый счёт больше
func (m *MariaRepo) Upsert(ctx context.Context, rec Record) error {
	const query = `
	INSERT INTO records (dog_id, name, score, updated_at) VALUES (?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		name = IF(VALUES(score) > score, VALUES(name), name),
		updated_at = IF(VALUES(score) > score, VALUES(updated_at), updated_at),
		score = GREATEST(score, VALUES(score))`

	if _, err := m.db.ExecContext(ctx, query, rec.DogID, rec.Name, rec.Score, rec.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("ошибка при сохранении рекорда: %w", err)
	}
	return nil
}

func (m *MariaRepo) Get(ctx context.Context, dogID uint64) (Record, error) {
	const query = `SELECT dog_id, name, score, updated_at FROM records WHERE dog_id = ?`

	var rec Record
	err := m.db.QueryRowContext(ctx, query, dogID).Scan(&rec.DogID, &rec.Name, &rec.Score, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("ошибка при получении рекорда: %w", err)
	}
	return rec, nil
}

func (m *MariaRepo) List(ctx context.Context, start, maxItems int) ([]Record, error) {
	if err := CheckRange(start, maxItems); err != nil {
		return nil, err
	}

	const query = `SELECT dog_id, name, score, updated_at FROM records
		ORDER BY score DESC, name ASC, dog_id ASC LIMIT ? OFFSET ?`

	rows, err := m.db.QueryContext(ctx, query, maxItems, start)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении рекордов: %w", err)
	}
	defer rows.Close()

	result := make([]Record, 0, maxItems)
	for rows.Next() {
		var rec Record
		var updated time.Time
		if err := rows.Scan(&rec.DogID, &rec.Name, &rec.Score, &updated); err != nil {
			return nil, err
		}
		rec.UpdatedAt = updated.UTC()
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Close закрывает подключение к БД
func (m *MariaRepo) Close() error {
	return m.db.Close()
}
