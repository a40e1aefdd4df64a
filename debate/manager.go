package debate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/agenthive/agent"
	"github.com/BaSui01/agenthive/bus"
	"github.com/BaSui01/agenthive/types"
)

// Manager selects participants and starts debates through a moderator.
// Participant selection uses the registry's capability tags; an agent joins
// a debate only if it advertises the debate capability and its concrete type
// actually implements Debater.
type Manager struct {
	bus       *bus.Bus
	moderator *Moderator
	logger    *zap.Logger
}

// NewManager wires a manager to a bus and a registered moderator.
func NewManager(b *bus.Bus, m *Moderator, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		bus:       b,
		moderator: m,
		logger:    logger.With(zap.String("component", "debate_manager")),
	}
}

// Moderator returns the manager's moderator.
func (m *Manager) Moderator() *Moderator { return m.moderator }

// EligibleParticipants returns the names of registered agents that can
// debate, excluding the moderator itself, in registry snapshot order sorted
// by name for determinism.
func (m *Manager) EligibleParticipants() []string {
	infos := m.bus.Agents()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.Name == m.moderator.Name() {
			continue
		}
		a, ok := m.bus.Get(info.Name)
		if !ok {
			continue
		}
		if !agent.HasCapability(a, types.CapDebate) {
			continue
		}
		if _, ok := agent.AsDebater(a); !ok {
			continue
		}
		names = append(names, info.Name)
	}
	sort.Strings(names)
	return names
}

// StartDebate selects eligible participants and opens a debate. Selection is
// truncated to the configured cap (5 by default) so large registries do not
// produce unwieldy debates. Fails with TOO_FEW_DEBATERS when fewer than the
// configured minimum can debate.
func (m *Manager) StartDebate(opts StartOptions) (Debate, error) {
	participants := m.EligibleParticipants()
	if len(participants) < m.moderator.minParticipants() {
		return Debate{}, types.Errorf(types.ErrTooFewDebaters,
			"only %d debate-capable agents registered, need %d",
			len(participants), m.moderator.minParticipants())
	}
	if limit := m.moderator.selectionCap(); len(participants) > limit {
		participants = participants[:limit]
	}
	d, err := m.moderator.StartDebate(opts, participants)
	if err != nil {
		return Debate{}, err
	}
	m.logger.Info("debate dispatched",
		zap.String("debate_id", d.ID),
		zap.Strings("participants", d.Participants),
	)
	return d, nil
}
