package records

import (
	"context"
	"errors"
	"sort"
	"time"
)

// MaxItems - наибольшее число записей в одном ответе
const MaxItems = 100

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidRange = errors.New("invalid records range")
)

// Record - лучший результат собаки
type Record struct {
	DogID     uint64    `json:"dogId"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository хранит таблицу рекордов.
// Upsert сохраняет запись, только если счёт больше уже сохранённого.
// List возвращает записи по убыванию счёта, при равенстве по имени.
type Repository interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, dogID uint64) (Record, error)
	List(ctx context.Context, start, maxItems int) ([]Record, error)
	Close() error
}

// CheckRange проверяет параметры постраничной выборки
func CheckRange(start, maxItems int) error {
	if start < 0 || maxItems < 0 || maxItems > MaxItems {
		return ErrInvalidRange
	}
	return nil
}

func sortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		if recs[i].Name != recs[j].Name {
			return recs[i].Name < recs[j].Name
		}
		return recs[i].DogID < recs[j].DogID
	})
}
