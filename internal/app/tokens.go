package app

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
)

// TokenLength - длина токена: два 64-битных слова в hex
const TokenLength = 32

// Token - секрет игрока для авторизации запросов
type Token string

// TokenEntry - пара токен/игрок в порядке выдачи
type TokenEntry struct {
	Token  Token
	Player *Player
}

// PlayerTokens выдаёт токены и ищет по ним игроков
type PlayerTokens struct {
	source io.Reader
	tokens map[Token]*Player
	order  []Token
}

// NewPlayerTokens создаёт реестр; source == nil означает crypto/rand
func NewPlayerTokens(source io.Reader) *PlayerTokens {
	if source == nil {
		source = rand.Reader
	}
	return &PlayerTokens{source: source, tokens: make(map[Token]*Player)}
}

func (pt *PlayerTokens) generate() (Token, error) {
	var buf [16]byte
	if _, err := io.ReadFull(pt.source, buf[:]); err != nil {
		return "", fmt.Errorf("генерация токена: %w", err)
	}
	hi := binary.BigEndian.Uint64(buf[:8])
	lo := binary.BigEndian.Uint64(buf[8:])
	return Token(fmt.Sprintf("%016x%016x", hi, lo)), nil
}

// NewToken генерирует токен, ещё не выданный никому. Токен не
// регистрируется; привязка - AddRestoredToken.
func (pt *PlayerTokens) NewToken() (Token, error) {
	for {
		token, err := pt.generate()
		if err != nil {
			return "", err
		}
		if _, taken := pt.tokens[token]; !taken {
			return token, nil
		}
	}
}

// AddPlayer выдаёт игроку новый уникальный токен. При совпадении
// с уже выданным токен генерируется заново.
func (pt *PlayerTokens) AddPlayer(p *Player) (Token, error) {
	token, err := pt.NewToken()
	if err != nil {
		return "", err
	}
	pt.AddRestoredToken(token, p)
	return token, nil
}

// AddRestoredToken привязывает сохранённый токен к игроку
func (pt *PlayerTokens) AddRestoredToken(token Token, p *Player) {
	if _, exists := pt.tokens[token]; !exists {
		pt.order = append(pt.order, token)
	}
	pt.tokens[token] = p
}

// FindPlayerByToken возвращает игрока или nil
func (pt *PlayerTokens) FindPlayerByToken(token Token) *Player {
	return pt.tokens[token]
}

// Entries возвращает токены в порядке выдачи
func (pt *PlayerTokens) Entries() []TokenEntry {
	entries := make([]TokenEntry, 0, len(pt.order))
	for _, t := range pt.order {
		entries = append(entries, TokenEntry{Token: t, Player: pt.tokens[t]})
	}
	return entries
}

func (pt *PlayerTokens) Count() int { return len(pt.tokens) }

// IsWellFormedToken проверяет длину и алфавит токена: только строчный hex,
// как при выдаче
func IsWellFormedToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
