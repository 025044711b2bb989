package utils

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"

	"github.com/argonprotocol/notary/types"
)

// SignBalanceChange sets change.Signature using the account key.
func SignBalanceChange(privateKey *ecdsa.PrivateKey, change *types.BalanceChange) error {
	data, err := change.SigningData()
	if err != nil {
		return err
	}
	change.Signature, err = SignData(privateKey, data)
	return err
}

func BalanceChangeSigIsValid(change *types.BalanceChange) bool {
	data, err := change.SigningData()
	if err != nil {
		return false
	}
	return SigIsValid(change.AccountID, data, change.Signature)
}

func SignBlockVote(privateKey *ecdsa.PrivateKey, vote *types.BlockVote) error {
	data, err := vote.SigningData()
	if err != nil {
		return err
	}
	vote.Signature, err = SignData(privateKey, data)
	return err
}

func BlockVoteSigIsValid(vote *types.BlockVote) bool {
	data, err := vote.SigningData()
	if err != nil {
		return false
	}
	return SigIsValid(vote.AccountID, data, vote.Signature)
}

// SignHeader signs the header hash with the notary operator key.
func SignHeader(privateKey *ecdsa.PrivateKey, header *types.NotebookHeader) ([]byte, error) {
	hash := header.Hash()
	return SignData(privateKey, hash.Bytes())
}

func HeaderSigIsValid(notary common.Address, header *types.NotebookHeader, sig []byte) bool {
	hash := header.Hash()
	return SigIsValid(notary, hash.Bytes(), sig)
}
