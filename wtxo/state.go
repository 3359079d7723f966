package wtxo

// State is one of the seven persisted output states plus the Error
// sentinel, stable-encoded per the table below -- these integers are
// used as KV keys (the "states" table, I5) and must never be renumbered.
type State uint32

const (
	StateError State = iota // sentinel; never persisted
	StateUnconfirmedNew
	StateUnconfirmedSpend
	StateConfirmedNew
	StateConfirmedSpend
	StateOrphanedNew
	StateOrphanedSpend
	StateImmature
)

func (s State) String() string {
	switch s {
	case StateUnconfirmedNew:
		return "UnconfirmedNew"
	case StateUnconfirmedSpend:
		return "UnconfirmedSpend"
	case StateConfirmedNew:
		return "ConfirmedNew"
	case StateConfirmedSpend:
		return "ConfirmedSpend"
	case StateOrphanedNew:
		return "OrphanedNew"
	case StateOrphanedSpend:
		return "OrphanedSpend"
	case StateImmature:
		return "Immature"
	default:
		return "Error"
	}
}

// allStates lists every persisted state; used by the index set to purge
// an outpoint from every non-target state bucket before inserting it
// into the target one (invariant 2: defensive, never trust prior
// consistency).
var allStates = [...]State{
	StateUnconfirmedNew,
	StateUnconfirmedSpend,
	StateConfirmedNew,
	StateConfirmedSpend,
	StateOrphanedNew,
	StateOrphanedSpend,
	StateImmature,
}

// legalTransitions is the transition table from spec.md §3.2 as enforced
// against Transaction Ingest and the Proposal Adapter. create (the zero
// "from" value below, StateError) may move into UnconfirmedNew,
// ConfirmedNew, or Immature. It deliberately excludes ConfirmedNew ->
// UnconfirmedNew and ConfirmedSpend -> UnconfirmedSpend: those two moves
// are not something ordinary ingest or proposal handling ever performs,
// and §3.5 reserves them to the Reorg Controller alone. StartReorg
// performs them through ReorgState, which bypasses this table.
var legalTransitions = map[State]map[State]bool{
	StateError: {
		StateUnconfirmedNew: true,
		StateConfirmedNew:   true,
		StateImmature:       true,
	},
	StateUnconfirmedNew: {
		StateConfirmedNew:     true,
		StateImmature:         true,
		StateUnconfirmedSpend: true,
		StateOrphanedNew:      true,
	},
	StateImmature: {
		StateConfirmedNew: true,
		StateOrphanedNew:  true,
	},
	StateConfirmedNew: {
		StateUnconfirmedSpend: true,
		StateConfirmedSpend:   true,
		StateOrphanedNew:      true,
	},
	StateUnconfirmedSpend: {
		StateConfirmedSpend: true,
		StateConfirmedNew:   true, // cancellation
		StateOrphanedSpend:  true,
	},
	StateConfirmedSpend: {
		StateOrphanedSpend: true,
	},
	StateOrphanedNew: {
		StateUnconfirmedNew: true,
		StateConfirmedNew:   true,
	},
	StateOrphanedSpend: {
		StateUnconfirmedSpend: true,
		StateConfirmedSpend:   true,
	},
}

// IsLegalTransition reports whether moving an outpoint from "from" to
// "to" is one of the transitions spec.md §3.2 permits.
func IsLegalTransition(from, to State) bool {
	return legalTransitions[from][to]
}

// isUnconfirmed reports whether s is one of the two "not yet mined"
// states (§3.4 invariant 4: these never advance a stored confirmed
// position).
func isUnconfirmed(s State) bool {
	return s == StateUnconfirmedNew || s == StateUnconfirmedSpend
}
