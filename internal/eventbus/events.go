package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source - имя сервиса в конвертах событий
const Source = "dog-gatherer"

// Типы игровых событий
const (
	TypePlayerJoined  = "PlayerJoined"
	TypeLootSpawned   = "LootSpawned"
	TypeLootPicked    = "LootPicked"
	TypeLootDeposited = "LootDeposited"
	TypeStateSaved    = "StateSaved"
)

var ErrClosed = errors.New("eventbus: closed")

// PlayerJoined - собака вошла в игру
type PlayerJoined struct {
	DogID uint64 `json:"dogId"`
	Name  string `json:"name"`
	MapID string `json:"mapId"`
}

// LootSpawned - на дороге появился предмет
type LootSpawned struct {
	MapID    string  `json:"mapId"`
	ObjectID uint64  `json:"objectId"`
	Type     int     `json:"type"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// LootPicked - собака подобрала предмет
type LootPicked struct {
	DogID    uint64 `json:"dogId"`
	MapID    string `json:"mapId"`
	ObjectID uint64 `json:"objectId"`
	Type     int    `json:"type"`
}

// LootDeposited - собака сдала рюкзак в бюро находок
type LootDeposited struct {
	DogID  uint64 `json:"dogId"`
	Name   string `json:"name"`
	MapID  string `json:"mapId"`
	Items  int    `json:"items"`
	Points int    `json:"points"`
	Score  int    `json:"score"`
}

// StateSaved - состояние мира сохранено
type StateSaved struct {
	Store   string `json:"store"`
	Bytes   int    `json:"bytes"`
	Players int    `json:"players"`
}

// priorities: сдача трофеев попадает в таблицу рекордов и не должна теряться
var priorities = map[string]int{
	TypeLootDeposited: 7,
	TypeStateSaved:    5,
}

// NewEnvelope упаковывает полезную нагрузку в конверт
func NewEnvelope(eventType string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    Source,
		EventType: eventType,
		Version:   1,
		Priority:  priorities[eventType],
		Payload:   data,
	}, nil
}

// Decode разбирает полезную нагрузку конверта
func (ev *Envelope) Decode(v any) error {
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", ev.EventType, err)
	}
	return nil
}
