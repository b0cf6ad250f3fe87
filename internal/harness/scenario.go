package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/brawl/internal/game"
	"github.com/roach88/brawl/internal/shop"
)

// Scenario defines one match run.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is the match seed. Every random draw derives from it.
	Seed uint64 `yaml:"seed"`

	// Seats is the lobby, in seat order. A seat without an account is a bot.
	Seats []SeatSpec `yaml:"seats"`

	// Setup overrides stored player state after creation, before the flow.
	Setup []PlayerSetup `yaml:"setup,omitempty"`

	// Flow is executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// SeatSpec is one lobby seat.
type SeatSpec struct {
	Name    string   `yaml:"name"`
	Account int64    `yaml:"account,omitempty"`
	Avatars []string `yaml:"avatars,omitempty"`
}

// PlayerSetup rewrites parts of one player's state.
type PlayerSetup struct {
	Player     int64       `yaml:"player"`
	Health     *int        `yaml:"health,omitempty"`
	Money      *int        `yaml:"money,omitempty"`
	Experience *int        `yaml:"experience,omitempty"`
	ClearBoard bool        `yaml:"clear_board,omitempty"`
	Board      []SlotSetup `yaml:"board,omitempty"`
}

// SlotSetup places a character built from a catalog template. Attack and
// health override the template's base stats when set.
type SlotSetup struct {
	Slot     int    `yaml:"slot"`
	Template string `yaml:"template"`
	Attack   *int   `yaml:"attack,omitempty"`
	Health   *int   `yaml:"health,omitempty"`
	Upgraded bool   `yaml:"upgraded,omitempty"`
}

// FlowStep is one command or advance. Which fields apply depends on Do.
type FlowStep struct {
	Do      string `yaml:"do"`
	Account int64  `yaml:"account,omitempty"`

	Shop   int                     `yaml:"shop,omitempty"`
	Board  int                     `yaml:"board,omitempty"`
	From   int                     `yaml:"from,omitempty"`
	To     int                     `yaml:"to,omitempty"`
	Slots  [shop.UpgradeCopies]int `yaml:"slots,omitempty"`
	Locked bool                    `yaml:"locked,omitempty"`
	Avatar string                  `yaml:"avatar,omitempty"`
	Max    int                     `yaml:"max,omitempty"`

	// ExpectError is the error code the step must fail with. Empty means
	// the step must succeed.
	ExpectError game.ErrorCode `yaml:"expect_error,omitempty"`
}

// Flow step kinds.
const (
	StepBuy              = "buy"
	StepSell             = "sell"
	StepReroll           = "reroll"
	StepUpgrade          = "upgrade"
	StepMove             = "move"
	StepLock             = "lock"
	StepAvatar           = "avatar"
	StepAdvance          = "advance"
	StepAdvanceUntilOver = "advance_until_over"
)

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "phase": the match is in Phase (and Round, when set)
	// - "player": the player's fields match Expect
	// - "notified": Account received Kind at least Count times (1 if unset)
	// - "records": exactly Count combat records were stored
	// - "replay": every stored combat record replays to its digest
	// - "placements": placements of all players are exactly 1..n
	Type string `yaml:"type"`

	Phase game.Phase `yaml:"phase,omitempty"`
	Round *int       `yaml:"round,omitempty"`

	Player int64          `yaml:"player,omitempty"`
	Expect map[string]int `yaml:"expect,omitempty"`

	Account int64  `yaml:"account,omitempty"`
	Kind    string `yaml:"kind,omitempty"`

	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertPhase      = "phase"
	AssertPlayer     = "player"
	AssertNotified   = "notified"
	AssertRecords    = "records"
	AssertReplay     = "replay"
	AssertPlacements = "placements"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if n := len(s.Seats); n < 2 || n > game.MaxPlayers {
		return fmt.Errorf("seats must list 2 to %d players, got %d", game.MaxPlayers, n)
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, ps := range s.Setup {
		if ps.Player < 1 || ps.Player > int64(len(s.Seats)) {
			return fmt.Errorf("setup[%d]: player %d is not seated", i, ps.Player)
		}
		for j, slot := range ps.Board {
			if !game.ValidSlot(slot.Slot) {
				return fmt.Errorf("setup[%d].board[%d]: slot %d out of range", i, j, slot.Slot)
			}
			if slot.Template == "" {
				return fmt.Errorf("setup[%d].board[%d]: template is required", i, j)
			}
		}
	}

	for i, step := range s.Flow {
		switch step.Do {
		case StepAdvance, StepAdvanceUntilOver:
		case StepBuy, StepSell, StepReroll, StepUpgrade, StepMove, StepLock, StepAvatar:
			if step.Account == 0 {
				return fmt.Errorf("flow[%d]: account is required for %s", i, step.Do)
			}
		case "":
			return fmt.Errorf("flow[%d]: do is required", i)
		default:
			return fmt.Errorf("flow[%d]: unknown step %q", i, step.Do)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertPhase:
		if a.Phase == "" {
			return fmt.Errorf("assertions[%d]: phase is required for phase", index)
		}
	case AssertPlayer:
		if a.Player == 0 {
			return fmt.Errorf("assertions[%d]: player is required for player", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for player", index)
		}
	case AssertNotified:
		if a.Account == 0 || a.Kind == "" {
			return fmt.Errorf("assertions[%d]: account and kind are required for notified", index)
		}
	case AssertRecords:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for records", index)
		}
	case AssertReplay, AssertPlacements:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
