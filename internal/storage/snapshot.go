package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic - начало любого zstd-фрейма
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// LostObjectRecord - потерянный предмет сессии
type LostObjectRecord struct {
	ID       uint64     `json:"id"`
	Type     int        `json:"type"`
	Position [2]float64 `json:"pos"`
	Width    float64    `json:"width"`
}

// SessionRecord - сохранённая игровая сессия
type SessionRecord struct {
	MapID        string             `json:"mapId"`
	DogIDs       []uint64           `json:"dogIds"`
	LostObjects  []LostObjectRecord `json:"lostObjects"`
	LastObjectID uint64             `json:"lastObjectId"`
}

// BagItemRecord - предмет в рюкзаке
type BagItemRecord struct {
	ID   uint64 `json:"id"`
	Type int    `json:"type"`
}

// DogRecord - сохранённая собака вместе с индексом её сессии
type DogRecord struct {
	ID           uint64          `json:"id"`
	Name         string          `json:"name"`
	SessionIndex int             `json:"session"`
	Position     [2]float64      `json:"pos"`
	Velocity     [2]float64      `json:"speed"`
	Direction    string          `json:"dir"`
	Bag          []BagItemRecord `json:"bag"`
	Score        int             `json:"score"`
}

// PlayersRecord - реестр игроков
type PlayersRecord struct {
	Dogs      []DogRecord `json:"dogs"`
	NextDogID uint64      `json:"nextDogId"`
}

// TokenRecord - связь токена с собакой
type TokenRecord struct {
	Token string `json:"token"`
	DogID uint64 `json:"dogId"`
}

// Snapshot - полное состояние мира. Порядок полей фиксирован:
// сессии, затем игроки, затем токены.
type Snapshot struct {
	Sessions []SessionRecord `json:"sessions"`
	Players  PlayersRecord   `json:"players"`
	Tokens   []TokenRecord   `json:"tokens"`
}

// EncodeSnapshot сериализует снимок в JSON, при compress=true сжимает zstd
func EncodeSnapshot(snap *Snapshot, compress bool) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("snapshot marshal: %w", err)
	}
	if !compress {
		return raw, nil
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("zstd close: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot разбирает снимок; сжатые данные распознаются по сигнатуре zstd
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	if IsCompressed(data) {
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer dec.Close()

		raw, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("zstd read: %w", err)
		}
		data = raw
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapshot unmarshal: %w", err)
	}
	return &snap, nil
}

// IsCompressed проверяет сигнатуру zstd
func IsCompressed(data []byte) bool {
	return bytes.HasPrefix(data, zstdMagic)
}
