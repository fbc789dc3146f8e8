package engine

import "math/rand/v2"

// 盤面の構成
const (
	HolderCount    = 16
	CardsPerHolder = 3
	DeckSize       = 52
)

var suits = [...]string{"S", "H", "D", "C"}

// Card は1枚のトランプ。Rankは1(A)〜13(K)。
type Card struct {
	Suit string `json:"suit"`
	Rank int    `json:"rank"`
}

// Layout は初期盤面。16のホルダーに3枚ずつ配り、残りをスペアの山とする。
type Layout struct {
	Holders [][]Card `json:"holders"`
	Spare   []Card   `json:"spare"`
}

// Empty は盤面が配られていないかを返す。
func (l Layout) Empty() bool {
	return len(l.Holders) == 0 && len(l.Spare) == 0
}

// NewDeck は整列済みの52枚を返す。
func NewDeck() []Card {
	deck := make([]Card, 0, DeckSize)
	for _, s := range suits {
		for rank := 1; rank <= 13; rank++ {
			deck = append(deck, Card{Suit: s, Rank: rank})
		}
	}
	return deck
}

// NewLayout はシャッフルした山札から盤面を配る。rngがnilの場合はグローバルな乱数源を使う。
func NewLayout(rng *rand.Rand) Layout {
	deck := NewDeck()
	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	layout := Layout{Holders: make([][]Card, HolderCount)}
	for i := range layout.Holders {
		start := i * CardsPerHolder
		layout.Holders[i] = deck[start : start+CardsPerHolder : start+CardsPerHolder]
	}
	layout.Spare = deck[HolderCount*CardsPerHolder:]
	return layout
}
