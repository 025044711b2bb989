package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamespaceRoundTrip(t *testing.T) {
	ns := []byte("bt")
	key := []byte{1, 2, 3}
	prefixed := PrependNamespace(ns, key)
	assert.Equal(t, []byte("bt|\x01\x02\x03"), prefixed)
	assert.Equal(t, key, TrimNamespace(ns, prefixed))

	// the namespace slice must not be aliased by the result
	other := PrependNamespace(ns, []byte{9})
	assert.Equal(t, []byte("bt|\x01\x02\x03"), prefixed)
	assert.Equal(t, []byte("bt|\x09"), other)

	assert.Equal(t, key, PrependNamespace(nil, key))
	assert.Nil(t, TrimNamespace(ns, []byte("b")))
}

func TestConvNilToBytes(t *testing.T) {
	assert.NotNil(t, ConvNilToBytes(nil))
	assert.Equal(t, []byte{1}, ConvNilToBytes([]byte{1}))
}
