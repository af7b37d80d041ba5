package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/storage"
)

const timeFormat = "2006-01-02T15:04:05Z"

// EventFilter отбирает события по типу и собаке
type EventFilter struct {
	Types []string
	Dogs  []uint64
}

// dogRef - общее поле событий с собакой
type dogRef struct {
	DogID *uint64 `json:"dogId"`
}

// Match проверяет событие; пустые списки пропускают всё
func (f EventFilter) Match(ev *eventbus.Envelope) bool {
	if len(f.Types) > 0 && !containsString(f.Types, ev.EventType) {
		return false
	}
	if len(f.Dogs) == 0 {
		return true
	}
	var ref dogRef
	if err := json.Unmarshal(ev.Payload, &ref); err != nil || ref.DogID == nil {
		return false
	}
	for _, id := range f.Dogs {
		if id == *ref.DogID {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func decodeEnvelope(data []byte) (*eventbus.Envelope, error) {
	var ev eventbus.Envelope
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// formatEvent форматирует событие для вывода
func formatEvent(ev *eventbus.Envelope) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", ev.Timestamp.UTC().Format(timeFormat), ev.EventType)

	switch ev.EventType {
	case eventbus.TypePlayerJoined:
		var p eventbus.PlayerJoined
		if ev.Decode(&p) == nil {
			fmt.Fprintf(&sb, " 🐕 dog=%d name=%q map=%s", p.DogID, p.Name, p.MapID)
		}
	case eventbus.TypeLootSpawned:
		var p eventbus.LootSpawned
		if ev.Decode(&p) == nil {
			fmt.Fprintf(&sb, " 🎁 map=%s object=%d type=%d at (%.2f, %.2f)", p.MapID, p.ObjectID, p.Type, p.X, p.Y)
		}
	case eventbus.TypeLootPicked:
		var p eventbus.LootPicked
		if ev.Decode(&p) == nil {
			fmt.Fprintf(&sb, " 🦴 dog=%d map=%s object=%d type=%d", p.DogID, p.MapID, p.ObjectID, p.Type)
		}
	case eventbus.TypeLootDeposited:
		var p eventbus.LootDeposited
		if ev.Decode(&p) == nil {
			fmt.Fprintf(&sb, " 🏢 dog=%d name=%q items=%d +%d score=%d", p.DogID, p.Name, p.Items, p.Points, p.Score)
		}
	default:
		if len(ev.Payload) > 0 {
			fmt.Fprintf(&sb, " %s", ev.Payload)
		}
	}
	return sb.String()
}

// dumpState печатает содержимое файла состояния
func dumpState(w io.Writer, path string, asJSON bool) error {
	snap, err := dumpLoad(path)
	if err != nil {
		return err
	}
	return writeSnapshot(w, snap, asJSON)
}

func writeSnapshot(w io.Writer, snap *storage.Snapshot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(w, "💾 Sessions: %d, dogs: %d, tokens: %d, next dog id: %d\n",
		len(snap.Sessions), len(snap.Players.Dogs), len(snap.Tokens), snap.Players.NextDogID)
	for i, s := range snap.Sessions {
		fmt.Fprintf(w, "  [%d] map=%s dogs=%v lost=%d\n", i, s.MapID, s.DogIDs, len(s.LostObjects))
	}
	for _, d := range snap.Players.Dogs {
		fmt.Fprintf(w, "  🐕 %d %q session=%d pos=(%.2f, %.2f) dir=%s bag=%d score=%d\n",
			d.ID, d.Name, d.SessionIndex, d.Position[0], d.Position[1], d.Direction, len(d.Bag), d.Score)
	}
	return nil
}

// parseStringList разбирает список через запятую
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseIDList разбирает идентификаторы собак, пропуская нечисловые
func parseIDList(s string) []uint64 {
	var ids []uint64
	for _, part := range parseStringList(s) {
		if id, err := strconv.ParseUint(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
