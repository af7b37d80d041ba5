package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/annel0/dog-gatherer/internal/vec"
	"github.com/annel0/dog-gatherer/internal/world"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed maps.schema.json
var mapsSchemaSource string

var mapsSchema = jsonschema.MustCompileString("maps.schema.json", mapsSchemaSource)

type mapsFile struct {
	DefaultDogSpeed     *float64        `json:"defaultDogSpeed"`
	DefaultBagCapacity  *int            `json:"defaultBagCapacity"`
	LootGeneratorConfig lootGenSettings `json:"lootGeneratorConfig"`
	Maps                []mapEntry      `json:"maps"`
}

type lootGenSettings struct {
	Period      float64 `json:"period"` // секунды
	Probability float64 `json:"probability"`
}

type mapEntry struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	DogSpeed    *float64         `json:"dogSpeed"`
	BagCapacity *int             `json:"bagCapacity"`
	Roads       []roadEntry      `json:"roads"`
	Buildings   []buildingEntry  `json:"buildings"`
	Offices     []officeEntry    `json:"offices"`
	LootTypes   []lootTypeEntry  `json:"lootTypes"`
}

type roadEntry struct {
	X0 int  `json:"x0"`
	Y0 int  `json:"y0"`
	X1 *int `json:"x1"`
	Y1 *int `json:"y1"`
}

type buildingEntry struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type officeEntry struct {
	ID      string `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	OffsetX int    `json:"offsetX"`
	OffsetY int    `json:"offsetY"`
}

type lootTypeEntry struct {
	Name     string  `json:"name"`
	File     string  `json:"file"`
	Type     string  `json:"type"`
	Rotation *int    `json:"rotation"`
	Color    *string `json:"color"`
	Scale    float64 `json:"scale"`
	Value    int     `json:"value"`
}

// LoadMaps читает файл карт и строит игру
func LoadMaps(path string) (*world.Game, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение файла карт: %w", err)
	}
	game, err := ParseMaps(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return game, nil
}

// ParseMaps проверяет JSON по схеме и строит игру.
// Скорость и вместимость рюкзака берутся из карты, затем из значений
// по умолчанию файла, затем из world.DefaultDogSpeed и world.DefaultBagCapacity.
func ParseMaps(data []byte) (*world.Game, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("разбор JSON карт: %w", err)
	}
	if err := mapsSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("файл карт не соответствует схеме: %w", err)
	}

	var file mapsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("разбор JSON карт: %w", err)
	}

	defaultSpeed := world.DefaultDogSpeed
	if file.DefaultDogSpeed != nil {
		defaultSpeed = *file.DefaultDogSpeed
	}
	defaultCapacity := world.DefaultBagCapacity
	if file.DefaultBagCapacity != nil {
		defaultCapacity = *file.DefaultBagCapacity
	}

	game := world.NewGame(world.LootConfig{
		Period:      time.Duration(file.LootGeneratorConfig.Period * float64(time.Second)),
		Probability: file.LootGeneratorConfig.Probability,
	})

	for _, entry := range file.Maps {
		speed := defaultSpeed
		if entry.DogSpeed != nil {
			speed = *entry.DogSpeed
		}
		capacity := defaultCapacity
		if entry.BagCapacity != nil {
			capacity = *entry.BagCapacity
		}

		m, err := buildMap(entry, speed, capacity)
		if err != nil {
			return nil, err
		}
		if err := game.AddMap(m); err != nil {
			return nil, err
		}
	}
	return game, nil
}

func buildMap(entry mapEntry, speed float64, capacity int) (*world.Map, error) {
	m := world.NewMap(world.MapID(entry.ID), entry.Name, speed, capacity)

	for _, lt := range entry.LootTypes {
		m.AddLootType(world.LootType{
			Name:     lt.Name,
			File:     lt.File,
			Type:     lt.Type,
			Rotation: lt.Rotation,
			Color:    lt.Color,
			Scale:    lt.Scale,
			Value:    lt.Value,
		})
	}

	for _, r := range entry.Roads {
		start := vec.Vec2{X: r.X0, Y: r.Y0}
		if r.X1 != nil {
			m.AddRoad(world.NewHorizontalRoad(start, *r.X1))
		} else {
			m.AddRoad(world.NewVerticalRoad(start, *r.Y1))
		}
	}

	for _, b := range entry.Buildings {
		m.AddBuilding(world.Building{
			Position: vec.Vec2{X: b.X, Y: b.Y},
			Width:    b.W,
			Height:   b.H,
		})
	}

	for _, o := range entry.Offices {
		err := m.AddOffice(world.Office{
			ID:       world.OfficeID(o.ID),
			Position: vec.Vec2{X: o.X, Y: o.Y},
			Offset:   vec.Vec2{X: o.OffsetX, Y: o.OffsetY},
		})
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}
