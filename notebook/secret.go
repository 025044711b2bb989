package notebook

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/minio/sha256-simd"
)

// SecretHash commits to a notebook secret before it is revealed by the next
// notebook.
func SecretHash(secret common.Hash, notebookNumber uint32) common.Hash {
	var number [4]byte
	binary.BigEndian.PutUint32(number[:], notebookNumber)
	hasher := sha256.New()
	hasher.Write(secret[:])
	hasher.Write(number[:])
	return common.BytesToHash(hasher.Sum(nil))
}

func newSecret() (common.Hash, error) {
	var secret common.Hash
	_, err := rand.Read(secret[:])
	return secret, err
}
