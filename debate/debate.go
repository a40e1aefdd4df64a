// Package debate implements bounded multi-round structured deliberation:
// the moderator-owned debate state machine, round lifecycle, argument
// collection and the vote that concludes it.
package debate

import (
	"time"

	"github.com/BaSui01/agenthive/voting"
)

// Status is the debate lifecycle state. closed is terminal.
type Status string

const (
	StatusOpen   Status = "open"
	StatusActive Status = "active"
	StatusVoting Status = "voting"
	StatusClosed Status = "closed"
)

// RoundStatus is the per-round state.
type RoundStatus string

const (
	RoundOpen   RoundStatus = "open"
	RoundClosed RoundStatus = "closed"
)

// Argument is one participant contribution to a round.
type Argument struct {
	Participant string    `json:"participant"`
	Position    string    `json:"position"`
	Reasoning   string    `json:"reasoning"`
	Evidence    []string  `json:"evidence,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Round is one bounded cycle of argument collection. Participants is the
// snapshot taken when the round opened; joins or leaves after that do not
// affect it.
type Round struct {
	Number       int                   `json:"number"`
	Participants []string              `json:"participants"`
	Arguments    map[string][]Argument `json:"arguments"`
	Status       RoundStatus           `json:"status"`
	OpenedAt     time.Time             `json:"opened_at"`
	ClosedAt     time.Time             `json:"closed_at,omitempty"`
	Deadline     time.Time             `json:"deadline"`
}

// submitted reports whether the participant already has an accepted argument
// in this round.
func (r *Round) submitted(participant string) bool {
	return len(r.Arguments[participant]) > 0
}

// complete reports whether every snapshot participant has submitted.
func (r *Round) complete() bool {
	for _, p := range r.Participants {
		if !r.submitted(p) {
			return false
		}
	}
	return true
}

// Debate is the full deliberation record. It is owned by its moderator; all
// mutation happens inside the moderator's handlers and deadline checks.
type Debate struct {
	ID           string         `json:"id"`
	Topic        string         `json:"topic"`
	Question     string         `json:"question"`
	Requester    string         `json:"requester"`
	ReplyThread  string         `json:"reply_thread,omitempty"`
	Moderator    string         `json:"moderator"`
	Participants []string       `json:"participants"`
	Status       Status         `json:"status"`
	Rounds       []*Round       `json:"rounds"`
	Method       voting.Method  `json:"method"`
	Options      []string       `json:"options,omitempty"`
	Result       *voting.Result `json:"result,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	ClosedAt     time.Time      `json:"closed_at,omitempty"`

	voteDeadline time.Time
	ballots      []voting.Ballot
	scoreBallots []voting.ScoreBallot
	voted        map[string]bool
}

const (
	// MinParticipants and MaxParticipants bound the debate size.
	MinParticipants = 2
	MaxParticipants = 7

	// DefaultSelectionCap is how many eligible agents the manager picks
	// when the config does not override it.
	DefaultSelectionCap = 5
)

// currentRound returns the latest round, or nil before round 1 opens.
func (d *Debate) currentRound() *Round {
	if len(d.Rounds) == 0 {
		return nil
	}
	return d.Rounds[len(d.Rounds)-1]
}

// isParticipant reports whether name is in the debate's participant list.
func (d *Debate) isParticipant(name string) bool {
	for _, p := range d.Participants {
		if p == name {
			return true
		}
	}
	return false
}

// allArguments returns every accepted argument across all rounds, round by
// round, participants in snapshot order.
func (d *Debate) allArguments() []Argument {
	var out []Argument
	for _, r := range d.Rounds {
		for _, p := range r.Participants {
			out = append(out, r.Arguments[p]...)
		}
	}
	return out
}

// compileOptions derives the candidate option list from the distinct
// positions observed across all rounds, in first-observed order.
func (d *Debate) compileOptions() []string {
	var opts []string
	seen := map[string]struct{}{}
	for _, a := range d.allArguments() {
		if a.Position == "" {
			continue
		}
		if _, ok := seen[a.Position]; !ok {
			seen[a.Position] = struct{}{}
			opts = append(opts, a.Position)
		}
	}
	return opts
}

// converged reports whether the latest round was fully submitted with a
// single shared position, which makes further rounds pointless. A partial
// round never converges; silence is not agreement.
func (d *Debate) converged() bool {
	r := d.currentRound()
	if r == nil || len(r.Participants) < 2 || !r.complete() {
		return false
	}
	first := ""
	for _, p := range r.Participants {
		for _, a := range r.Arguments[p] {
			if first == "" {
				first = a.Position
			} else if a.Position != first {
				return false
			}
		}
	}
	return first != ""
}

// Snapshot returns a caller-owned copy of the debate's public state.
func (d *Debate) Snapshot() Debate {
	cp := *d
	cp.Rounds = make([]*Round, len(d.Rounds))
	for i, r := range d.Rounds {
		rc := *r
		rc.Participants = append([]string(nil), r.Participants...)
		rc.Arguments = make(map[string][]Argument, len(r.Arguments))
		for p, as := range r.Arguments {
			rc.Arguments[p] = append([]Argument(nil), as...)
		}
		cp.Rounds[i] = &rc
	}
	cp.Participants = append([]string(nil), d.Participants...)
	cp.Options = append([]string(nil), d.Options...)
	if d.Result != nil {
		rc := *d.Result
		cp.Result = &rc
	}
	cp.ballots, cp.scoreBallots, cp.voted = nil, nil, nil
	return cp
}
