package engine

import (
	"github.com/google/uuid"

	"github.com/mfactory-lab/omnisol/internal/event"
	"github.com/mfactory-lab/omnisol/internal/instruction"
	"github.com/mfactory-lab/omnisol/internal/state"
)

func (e *Engine) handleUpdateOracleInfo(i *instruction.UpdateOracleInfo) (*outcome, error) {
	oracle, ok := e.store.GetOracle()
	if !ok {
		return nil, ErrWrongData
	}
	if oracle.Authority != i.Authority {
		return nil, ErrUnauthorized
	}
	if len(i.Addresses) == 0 || len(i.Addresses) != len(i.Values) {
		return nil, ErrWrongData
	}

	if i.Clear {
		oracle.PriorityQueue = nil
	}
	if len(oracle.PriorityQueue)+len(i.Addresses) > state.QueueCapacity {
		return nil, ErrWrongData
	}

	for idx, addr := range i.Addresses {
		oracle.PriorityQueue = append(oracle.PriorityQueue, state.QueueMember{
			Collateral: addr,
			Amount:     i.Values[idx],
		})
	}
	e.store.PutOracle(oracle)

	out := &outcome{
		events: []event.Event{&event.OracleUpdated{
			Oracle:      oracle.Authority,
			QueueLength: len(oracle.PriorityQueue),
			Cleared:     i.Clear,
			Timestamp:   i.Timestamp,
		}},
		touched: []uuid.UUID{oracle.Authority},
	}
	return out, nil
}
