package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	nsBalanceTip               = []byte("bt")
	nsAccountOrigin            = []byte("ao")
	nsNewAccountOrigin         = []byte("nao")
	nsNewAccountOriginCounter  = []byte("naoc")
	nsTransferToLocal          = []byte("ctl")
	nsClaimedTransferToLocal   = []byte("ctn")
	nsTransferToMainchain      = []byte("ctm")
	nsTransferToMainchainCount = []byte("ctmc")
	nsNotebookStatus           = []byte("ns")
	nsOpenNotebook             = []byte("nsopen")
	nsAppendMarker             = []byte("nsa")
	nsNotarization             = []byte("nz")
	nsNotebookHeader           = []byte("nh")
	nsNotebook                 = []byte("nb")
	nsNotebookLeaves           = []byte("nl")
	nsNotebookSecret           = []byte("nsecret")
	nsMeta                     = []byte("meta")
)

var (
	keyOpenNotebook = []byte("current")
	keyNotebookMeta = []byte("notebooks")
	keyChainState   = []byte("chain")
)

func uint32Key(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func parseUint32Key(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b[:4])
}

func joinKey(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func accountNonceKey(account common.Address, nonce uint32) []byte {
	return joinKey(account.Bytes(), uint32Key(nonce))
}
