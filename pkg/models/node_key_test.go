package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	processP1 = NewProcessDefinitionKey("travels", "1.0")
	processP2 = NewProcessDefinitionKey("travels", "2.0")
)

type embeddedNodeKey struct {
	NodeKey
}

// sampleNodeKeys includes duplicates and empty values on purpose so the
// equivalence properties are checked across equal and unequal pairs.
func sampleNodeKeys() []NodeKey {
	return []NodeKey{
		NewNodeKey("n1", processP1),
		NewNodeKey("n1", processP1),
		NewNodeKey("n2", processP1),
		NewNodeKey("n1", processP2),
		NewNodeKey("", processP1),
		NewNodeKey("n1", ProcessDefinitionKey{}),
		{},
		{},
		NewNodeKey("travels", NewProcessDefinitionKey("n1", "1.0")),
	}
}

func TestNodeKey_Accessors(t *testing.T) {
	t.Parallel()

	key := NewNodeKey("n1", processP1)

	assert.Equal(t, "n1", key.ID())
	assert.Equal(t, processP1, key.Process())
	assert.Equal(t, "travels", key.Process().ID())
	assert.Equal(t, "1.0", key.Process().Version())
}

func TestNodeKey_Reflexive(t *testing.T) {
	t.Parallel()

	for _, a := range sampleNodeKeys() {
		assert.True(t, a.Equal(a), "%s should equal itself", a)
		assert.True(t, a.Equal(&a), "%s should equal a pointer to itself", a)
	}
}

func TestNodeKey_Symmetric(t *testing.T) {
	t.Parallel()

	keys := sampleNodeKeys()
	for _, a := range keys {
		for _, b := range keys {
			assert.Equal(t, a.Equal(b), b.Equal(a), "symmetry broken for %s and %s", a, b)
		}
	}
}

func TestNodeKey_Transitive(t *testing.T) {
	t.Parallel()

	keys := sampleNodeKeys()
	for _, a := range keys {
		for _, b := range keys {
			for _, c := range keys {
				if a.Equal(b) && b.Equal(c) {
					assert.True(t, a.Equal(c), "transitivity broken for %s, %s, %s", a, b, c)
				}
			}
		}
	}
}

func TestNodeKey_HashConsistentWithEqual(t *testing.T) {
	t.Parallel()

	keys := sampleNodeKeys()
	for _, a := range keys {
		for _, b := range keys {
			if a.Equal(b) {
				assert.Equal(t, a.Hash(), b.Hash(), "equal keys %s and %s must hash equally", a, b)
			}
		}
	}
}

func TestNodeKey_EqualMatchesGoEquality(t *testing.T) {
	t.Parallel()

	keys := sampleNodeKeys()
	for _, a := range keys {
		for _, b := range keys {
			assert.Equal(t, a == b, a.Equal(b))
		}
	}
}

func TestNodeKey_Consistent(t *testing.T) {
	t.Parallel()

	a := NewNodeKey("n1", processP1)
	b := NewNodeKey("n1", processP1)
	first := a.Hash()

	for range 100 {
		assert.True(t, a.Equal(b))
		assert.Equal(t, first, a.Hash())
	}
}

func TestNodeKey_NotEqualToAbsentOrOtherTypes(t *testing.T) {
	t.Parallel()

	a := NewNodeKey("n1", processP1)

	var nilKey *NodeKey

	tests := []struct {
		name  string
		other any
	}{
		{name: "untyped nil", other: nil},
		{name: "nil pointer", other: nilKey},
		{name: "string with the same id", other: "n1"},
		{name: "process definition key", other: processP1},
		{name: "diagnostic string", other: a.String()},
		{name: "type embedding NodeKey", other: embeddedNodeKey{NodeKey: a}},
		{name: "pointer to type embedding NodeKey", other: &embeddedNodeKey{NodeKey: a}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, a.Equal(tt.other))
		})
	}
}

func TestNodeKey_Scenarios(t *testing.T) {
	t.Parallel()

	t.Run("same id and same process are equal", func(t *testing.T) {
		a := NewNodeKey("n1", processP1)
		b := NewNodeKey("n1", processP1)

		require.True(t, processP1.Equal(processP1))
		assert.True(t, a.Equal(b))
		assert.Equal(t, a.Hash(), b.Hash())
	})

	t.Run("different id is not equal", func(t *testing.T) {
		a := NewNodeKey("n1", processP1)
		c := NewNodeKey("n2", processP1)

		assert.False(t, a.Equal(c))
	})

	t.Run("different process is not equal", func(t *testing.T) {
		a := NewNodeKey("n1", processP1)
		d := NewNodeKey("n1", processP2)

		require.False(t, processP1.Equal(processP2))
		assert.False(t, a.Equal(d))
	})

	t.Run("both ids empty with equal processes are equal", func(t *testing.T) {
		assert.True(t, NewNodeKey("", processP1).Equal(NewNodeKey("", processP1)))
		assert.True(t, NodeKey{}.Equal(NodeKey{}))
	})
}

func TestNodeKey_WithIDReturnsNewKey(t *testing.T) {
	t.Parallel()

	a := NewNodeKey("n1", processP1)
	c := NewNodeKey("n2", processP1)

	stored := map[NodeKey]string{a: "start"}

	a2 := a.WithID("n2")

	assert.True(t, a2.Equal(c))
	assert.Equal(t, c.Hash(), a2.Hash())

	// The original key is a value, so the stored entry is still reachable.
	assert.Equal(t, "n1", a.ID())
	assert.False(t, a.Equal(c))
	assert.Equal(t, "start", stored[a])

	_, found := stored[a2]
	assert.False(t, found)
}

func TestNodeKey_WithProcessReturnsNewKey(t *testing.T) {
	t.Parallel()

	a := NewNodeKey("n1", processP1)
	d := a.WithProcess(processP2)

	assert.Equal(t, processP1, a.Process())
	assert.Equal(t, processP2, d.Process())
	assert.Equal(t, "n1", d.ID())
	assert.True(t, d.Equal(NewNodeKey("n1", processP2)))
}

func TestNodeKey_HashIsOrderSensitive(t *testing.T) {
	t.Parallel()

	// Swapping what each part contributes must change the hash.
	assert.NotEqual(t, combineHash(1, 2), combineHash(2, 1))

	a := NewProcessDefinitionKey("travels", "1.0")
	b := NewProcessDefinitionKey("1.0", "travels")

	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestNodeKey_HashSpreadsDistinctKeys(t *testing.T) {
	t.Parallel()

	hashes := make(map[uint64]struct{})

	for i := range 1000 {
		key := NewNodeKey(fmt.Sprintf("node-%d", i), processP1)
		hashes[key.Hash()] = struct{}{}
	}

	assert.Len(t, hashes, 1000)
}

func TestNodeKey_String(t *testing.T) {
	t.Parallel()

	key := NewNodeKey("n1", processP1)
	s := key.String()

	assert.Contains(t, s, "n1")
	assert.Contains(t, s, processP1.String())
	assert.Contains(t, s, "travels")
	assert.Contains(t, s, "1.0")
}

func TestNodeKey_ZeroAndComplete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		key          NodeKey
		wantZero     bool
		wantComplete bool
	}{
		{name: "zero value", key: NodeKey{}, wantZero: true},
		{name: "id only", key: NewNodeKey("n1", ProcessDefinitionKey{})},
		{name: "process only", key: NewNodeKey("", processP1)},
		{name: "missing version", key: NewNodeKey("n1", NewProcessDefinitionKey("travels", ""))},
		{name: "complete", key: NewNodeKey("n1", processP1), wantComplete: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantZero, tt.key.IsZero())
			assert.Equal(t, tt.wantComplete, tt.key.IsComplete())
		})
	}
}
