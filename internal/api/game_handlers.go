package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/dog-gatherer/internal/app"
	"github.com/annel0/dog-gatherer/internal/records"
	"github.com/annel0/dog-gatherer/internal/world"
	"github.com/gin-gonic/gin"
)

// MapSummary - элемент списка карт
type MapSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type roadJSON struct {
	X0 int  `json:"x0"`
	Y0 int  `json:"y0"`
	X1 *int `json:"x1,omitempty"`
	Y1 *int `json:"y1,omitempty"`
}

type buildingJSON struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type officeJSON struct {
	ID      string `json:"id"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	OffsetX int    `json:"offsetX"`
	OffsetY int    `json:"offsetY"`
}

type lootTypeJSON struct {
	Name     string  `json:"name"`
	File     string  `json:"file"`
	Type     string  `json:"type"`
	Rotation *int    `json:"rotation,omitempty"`
	Color    *string `json:"color,omitempty"`
	Scale    float64 `json:"scale"`
	Value    int     `json:"value"`
}

// MapDetails - полное описание карты
type MapDetails struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	DogSpeed    float64        `json:"dogSpeed"`
	BagCapacity int            `json:"bagCapacity"`
	LootTypes   []lootTypeJSON `json:"lootTypes"`
	Roads       []roadJSON     `json:"roads"`
	Buildings   []buildingJSON `json:"buildings"`
	Offices     []officeJSON   `json:"offices"`
}

func newMapDetails(m *world.Map) MapDetails {
	d := MapDetails{
		ID:          string(m.ID()),
		Name:        m.Name(),
		DogSpeed:    m.DogSpeed(),
		BagCapacity: m.BagCapacity(),
		LootTypes:   make([]lootTypeJSON, 0, m.LootTypesCount()),
		Roads:       make([]roadJSON, 0, len(m.Roads())),
		Buildings:   make([]buildingJSON, 0, len(m.Buildings())),
		Offices:     make([]officeJSON, 0, len(m.Offices())),
	}
	for _, lt := range m.LootTypes() {
		d.LootTypes = append(d.LootTypes, lootTypeJSON{
			Name: lt.Name, File: lt.File, Type: lt.Type,
			Rotation: lt.Rotation, Color: lt.Color, Scale: lt.Scale, Value: lt.Value,
		})
	}
	for _, r := range m.Roads() {
		rj := roadJSON{X0: r.Start().X, Y0: r.Start().Y}
		end := r.End()
		if r.IsHorizontal() {
			rj.X1 = &end.X
		} else {
			rj.Y1 = &end.Y
		}
		d.Roads = append(d.Roads, rj)
	}
	for _, b := range m.Buildings() {
		d.Buildings = append(d.Buildings, buildingJSON{X: b.Position.X, Y: b.Position.Y, W: b.Width, H: b.Height})
	}
	for _, o := range m.Offices() {
		d.Offices = append(d.Offices, officeJSON{
			ID: string(o.ID), X: o.Position.X, Y: o.Position.Y, OffsetX: o.Offset.X, OffsetY: o.Offset.Y,
		})
	}
	return d
}

// handleListMaps возвращает список карт
func (rs *RestServer) handleListMaps(c *gin.Context) {
	maps := rs.loop.Maps()
	list := make([]MapSummary, 0, len(maps))
	for _, m := range maps {
		list = append(list, MapSummary{ID: string(m.ID()), Name: m.Name()})
	}
	c.JSON(http.StatusOK, list)
}

// handleGetMap возвращает карту по идентификатору
func (rs *RestServer) handleGetMap(c *gin.Context) {
	m := rs.loop.FindMap(world.MapID(c.Param("id")))
	if m == nil {
		abortWithError(c, http.StatusNotFound, codeMapNotFound, "Map not found")
		return
	}
	c.JSON(http.StatusOK, newMapDetails(m))
}

// JoinRequest - запрос на вход в игру
type JoinRequest struct {
	UserName *string `json:"userName"`
	MapID    *string `json:"mapId"`
}

// JoinResponse - выданный токен и идентификатор собаки
type JoinResponse struct {
	AuthToken string `json:"authToken"`
	PlayerID  uint64 `json:"playerId"`
}

// handleJoin обрабатывает вход в игру
func (rs *RestServer) handleJoin(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserName == nil || req.MapID == nil {
		badArgument(c, "Join game request parse error")
		return
	}
	if *req.UserName == "" {
		badArgument(c, "Invalid name")
		return
	}
	if *req.MapID == "" {
		badArgument(c, "Invalid map")
		return
	}

	var res app.JoinResult
	var joinErr error
	err := rs.loop.Do(c.Request.Context(), func(a *app.Application) {
		res, joinErr = a.JoinGame(world.MapID(*req.MapID), *req.UserName)
	})
	if err != nil {
		internalError(c, err)
		return
	}

	var code app.JoinError
	if errors.As(joinErr, &code) {
		switch code {
		case app.JoinErrorMapNotFound:
			abortWithError(c, http.StatusNotFound, codeMapNotFound, "Map not found")
		case app.JoinErrorSessionNotFound:
			abortWithError(c, http.StatusNotFound, codeMapNotFound, "Session not found")
		default:
			badArgument(c, "Invalid name")
		}
		return
	}
	if joinErr != nil {
		internalError(c, joinErr)
		return
	}

	c.JSON(http.StatusOK, JoinResponse{AuthToken: string(res.Token), PlayerID: uint64(res.DogID)})
}

// withPlayer находит игрока по токену и выполняет fn в цикле.
// Возвращает false, если ответ с ошибкой уже отправлен.
func (rs *RestServer) withPlayer(c *gin.Context, fn func(a *app.Application, p *app.Player)) bool {
	token := c.MustGet(ctxPlayerToken).(app.Token)

	found := false
	err := rs.loop.Do(c.Request.Context(), func(a *app.Application) {
		p := a.FindPlayerByToken(token)
		if p == nil {
			return
		}
		found = true
		fn(a, p)
	})
	if err != nil {
		internalError(c, err)
		return false
	}
	if !found {
		abortWithError(c, http.StatusUnauthorized, codeUnknownToken, "Player token has not been found")
		return false
	}
	return true
}

type playerName struct {
	Name string `json:"name"`
}

// handlePlayers возвращает собак в сессии игрока
func (rs *RestServer) handlePlayers(c *gin.Context) {
	result := make(map[string]playerName)
	ok := rs.withPlayer(c, func(a *app.Application, p *app.Player) {
		for _, other := range a.PlayersInSession(p) {
			result[strconv.FormatUint(uint64(other.ID()), 10)] = playerName{Name: other.Dog().Name()}
		}
	})
	if ok {
		c.JSON(http.StatusOK, result)
	}
}

type bagItemJSON struct {
	ID   uint64 `json:"id"`
	Type int    `json:"type"`
}

type dogStateJSON struct {
	Pos   [2]float64    `json:"pos"`
	Speed [2]float64    `json:"speed"`
	Dir   string        `json:"dir"`
	Bag   []bagItemJSON `json:"bag"`
	Score int           `json:"score"`
}

type lostObjectJSON struct {
	Type int        `json:"type"`
	Pos  [2]float64 `json:"pos"`
}

// GameState - состояние сессии игрока
type GameState struct {
	Players     map[string]dogStateJSON   `json:"players"`
	LostObjects map[string]lostObjectJSON `json:"lostObjects"`
}

// handleState возвращает состояние сессии игрока
func (rs *RestServer) handleState(c *gin.Context) {
	state := GameState{
		Players:     make(map[string]dogStateJSON),
		LostObjects: make(map[string]lostObjectJSON),
	}
	ok := rs.withPlayer(c, func(a *app.Application, p *app.Player) {
		for _, other := range a.PlayersInSession(p) {
			dog := other.Dog()
			ds := dog.State()
			bag := make([]bagItemJSON, 0, len(dog.Bag()))
			for _, item := range dog.Bag() {
				bag = append(bag, bagItemJSON{ID: item.ID, Type: item.Type})
			}
			state.Players[strconv.FormatUint(uint64(dog.ID()), 10)] = dogStateJSON{
				Pos:   ds.Position.Array(),
				Speed: ds.Velocity.Array(),
				Dir:   ds.Direction.String(),
				Bag:   bag,
				Score: dog.Score(),
			}
		}
		for i, obj := range p.Session().LostObjects() {
			state.LostObjects[strconv.Itoa(i)] = lostObjectJSON{Type: obj.Type, Pos: obj.Position.Array()}
		}
	})
	if ok {
		c.JSON(http.StatusOK, state)
	}
}

// ActionRequest - команда движения
type ActionRequest struct {
	Move *string `json:"move"`
}

// handleAction задаёт движение собаки
func (rs *RestServer) handleAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Move == nil {
		badArgument(c, "Failed to parse action")
		return
	}
	ok := rs.withPlayer(c, func(a *app.Application, p *app.Player) {
		a.SetAction(p, *req.Move)
	})
	if ok {
		c.JSON(http.StatusOK, gin.H{})
	}
}

// maxTickDeltaMs - наибольший timeDelta, представимый в time.Duration
const maxTickDeltaMs = math.MaxInt64 / int64(time.Millisecond)

// TickRequest - продвижение времени в миллисекундах
type TickRequest struct {
	TimeDelta *int64 `json:"timeDelta"`
}

// handleTick продвигает время в ручном режиме
func (rs *RestServer) handleTick(c *gin.Context) {
	if !rs.loop.ManualTicks() {
		abortWithError(c, http.StatusBadRequest, codeBadRequest, "Invalid endpoint")
		return
	}

	var req TickRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TimeDelta == nil ||
		*req.TimeDelta < 0 || *req.TimeDelta > maxTickDeltaMs {
		badArgument(c, "Failed to parse tick request JSON")
		return
	}

	_, err := rs.loop.Tick(c.Request.Context(), time.Duration(*req.TimeDelta)*time.Millisecond)
	if errors.Is(err, app.ErrManualTickDisabled) {
		abortWithError(c, http.StatusBadRequest, codeBadRequest, "Invalid endpoint")
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// handleRecords возвращает таблицу рекордов
func (rs *RestServer) handleRecords(c *gin.Context) {
	start, err := strconv.Atoi(c.DefaultQuery("start", "0"))
	if err != nil {
		badArgument(c, "Invalid start")
		return
	}
	maxItems, err := strconv.Atoi(c.DefaultQuery("maxItems", strconv.Itoa(records.MaxItems)))
	if err != nil {
		badArgument(c, "Invalid maxItems")
		return
	}
	if err := records.CheckRange(start, maxItems); err != nil {
		badArgument(c, "maxItems must be at most 100")
		return
	}

	list, err := rs.records.List(c.Request.Context(), start, maxItems)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
