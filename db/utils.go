package db

var Separator = []byte("|")

func PrependNamespace(namespace []byte, key []byte) []byte {
	if namespace != nil {
		prefixed := make([]byte, 0, len(namespace)+len(Separator)+len(key))
		prefixed = append(prefixed, namespace...)
		prefixed = append(prefixed, Separator...)
		return append(prefixed, key...)
	}
	return key
}

// TrimNamespace strips the namespace written by PrependNamespace.
func TrimNamespace(namespace []byte, key []byte) []byte {
	if namespace == nil {
		return key
	}
	n := len(namespace) + len(Separator)
	if len(key) < n {
		return nil
	}
	return key[n:]
}

func ConvNilToBytes(byteArray []byte) []byte {
	if byteArray == nil {
		return []byte{}
	}
	return byteArray
}

// Update runs fn inside a new transaction and commits it, discarding on error.
func Update(database DB, fn func(Transaction) error) error {
	tx := database.NewTx()
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
