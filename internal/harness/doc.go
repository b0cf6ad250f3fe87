// Package harness runs match scenarios: a lobby, optional state setup, a
// flow of player commands and phase advances, and assertions on the final
// state, the notifications delivered and the combat records.
//
// Each scenario runs against a fresh in-memory store with a manual clock,
// fixed match ids and the scenario's seed, so the same file always
// produces the same trace.
//
// # Scenario Format
//
//	name: duel
//	description: "What this scenario validates"
//	seed: 42
//	seats:
//	  - {name: Ann, account: 10}
//	  - {name: Bot}
//	setup:
//	  - player: 2
//	    health: 2
//	    board:
//	      - {slot: 0, template: peasant}
//	flow:
//	  - {do: buy, account: 10, shop: 9, board: 0, expect_error: INVALID_INDEX}
//	  - {do: advance}
//	  - {do: advance_until_over, max: 500}
//	assertions:
//	  - {type: phase, phase: game_over}
//	  - {type: player, player: 1, expect: {placement: 1}}
//	  - {type: notified, account: 10, kind: game_over, count: 1}
//	  - {type: records, count: 2}
//	  - {type: replay}
//	  - {type: placements}
//
// Flow steps advance the clock to the match's due time before advancing,
// so scenarios never wait on wall time.
package harness
