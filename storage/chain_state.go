package storage

import "github.com/argonprotocol/notary/types"

// ChainState is the notary's view of the base chain.
type ChainState struct {
	BestBlockNumber      types.BlockNumber
	FinalizedBlockNumber types.BlockNumber
}

// ChainStateStore records the base-chain heights reported by the relayer.
// Both heights only move forward.
type ChainStateStore struct{}

func (s *ChainStateStore) Get(tx *Tx) (*ChainState, error) {
	state := new(ChainState)
	if _, err := getRLP(tx, nsMeta, keyChainState, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *ChainStateStore) SetBestBlock(tx *Tx, number types.BlockNumber) error {
	state, err := s.Get(tx)
	if err != nil {
		return err
	}
	if number <= state.BestBlockNumber {
		return nil
	}
	state.BestBlockNumber = number
	return setRLP(tx, nsMeta, keyChainState, state)
}

func (s *ChainStateStore) SetFinalizedBlock(tx *Tx, number types.BlockNumber) error {
	state, err := s.Get(tx)
	if err != nil {
		return err
	}
	if number <= state.FinalizedBlockNumber {
		return nil
	}
	state.FinalizedBlockNumber = number
	if state.BestBlockNumber < number {
		state.BestBlockNumber = number
	}
	return setRLP(tx, nsMeta, keyChainState, state)
}
