package flavor

import (
	"math/rand"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Static bark lines served whenever the generator is unavailable or a pool
// runs dry. Every category must stay non-empty; GetBark relies on that to
// never return an empty string.
var fallbackBarks = map[string][]string{
	CategoryNearMiss: {
		"TOO CLOSE!",
		"ALMOST SMEARED!",
		"WHEW, STILL SOLID!",
		"NOT TODAY!",
		"SKIMMED IT!",
	},
	CategoryStomp: {
		"SQUASH!",
		"SPLAT!",
		"CRUSHED!",
		"STOMPED!",
		"FLATTENED!",
		"PANCAKED!",
	},
	CategoryHit: {
		"OOF!",
		"RIGHT IN THE CORN!",
		"THAT STUNG!",
		"OW OW OW!",
		"BONKED!",
	},
	CategoryBoost: {
		"FLUSH SPEED!",
		"LOG JAMMIN'!",
		"FULL STEAM!",
		"GREASED UP!",
		"WHOOOOSH!",
	},
	CategoryCombo: {
		"ON A ROLL!",
		"UNSTOPPA-BOWL!",
		"CHAIN REACTION!",
		"KEEP IT FLOWING!",
		"STREAKIN'!",
	},
	CategoryGeneric: {
		"HERE WE GO!",
		"EAT MY WAKE!",
		"SEWER SURFIN'!",
		"DOWN THE DRAIN!",
		"PIPE DREAMS, BABY!",
	},
}

// fallbackRecentSize bounds the recently-served memory used to avoid playing
// the same canned line twice in quick succession.
const fallbackRecentSize = 8

// fallbackPicker serves random lines from the static tables, steering away
// from lines it handed out recently.
type fallbackPicker struct {
	tables map[string][]string
	recent *lru.Cache[string, struct{}]
}

func newFallbackPicker() *fallbackPicker {
	recent, _ := lru.New[string, struct{}](fallbackRecentSize)
	return &fallbackPicker{
		tables: fallbackBarks,
		recent: recent,
	}
}

// Pick returns a random line for the category. Unknown categories map to the
// generic table. The pick is uniform over lines not in the recent window;
// when every line is recent it is uniform over the whole table.
func (p *fallbackPicker) Pick(category string) string {
	table, ok := p.tables[category]
	if !ok || len(table) == 0 {
		table = p.tables[CategoryGeneric]
	}

	fresh := make([]string, 0, len(table))
	for _, line := range table {
		if !p.recent.Contains(line) {
			fresh = append(fresh, line)
		}
	}
	if len(fresh) == 0 {
		fresh = table
	}
	line := fresh[rand.Intn(len(fresh))]
	p.recent.Add(line, struct{}{})
	return line
}

// FallbackBark returns a static bark for the category without touching any
// pool. Used directly when a player has AI voices disabled.
func (m *Manager) FallbackBark(category string) BarkItem {
	m.fallbackMu.Lock()
	line := m.fallback.Pick(category)
	m.fallbackMu.Unlock()
	return BarkItem{Line: line, Emotion: EmotionExcited}
}
