package models

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const requiredTag = "required"

func newTravelsDefinition() *ProcessDefinition {
	return &ProcessDefinition{
		ID:       "travels",
		Version:  "1.0",
		Name:     "Travels",
		Type:     "ProcessDefinition",
		Endpoint: "http://localhost:8080/travels",
		Roles:    []string{"traveller"},
		Addons:   []string{"jobs-management", "prometheus-monitoring"},
		Metadata: map[string]any{"owner": "travel-agency"},
		Nodes: []*Node{
			{ID: "1", Name: "Start", UniqueID: "1", Type: NodeTypeStart},
			{ID: "2", Name: "Book Flight", UniqueID: "2", Type: NodeTypeSubProcess, Metadata: map[string]string{"UniqueId": "2"}},
			{ID: "3", Name: "End", UniqueID: "3", Type: NodeTypeEnd},
		},
	}
}

func TestProcessDefinitionKey_Contract(t *testing.T) {
	t.Parallel()

	a := NewProcessDefinitionKey("travels", "1.0")
	b := NewProcessDefinitionKey("travels", "1.0")

	var nilKey *ProcessDefinitionKey

	assert.True(t, a.Equal(a))
	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(&b))
	assert.Equal(t, a.Hash(), b.Hash())
	assert.False(t, a.Equal(nil))
	assert.False(t, a.Equal(nilKey))
	assert.False(t, a.Equal(NewNodeKey("travels", a)))
	assert.False(t, a.Equal(a.WithVersion("2.0")))
	assert.False(t, a.Equal(a.WithID("hotels")))
	assert.True(t, ProcessDefinitionKey{}.Equal(ProcessDefinitionKey{}))
	assert.Contains(t, a.String(), "travels")
	assert.Contains(t, a.String(), "1.0")
}

func TestProcessDefinitionKey_WithDoesNotMutate(t *testing.T) {
	t.Parallel()

	a := NewProcessDefinitionKey("travels", "1.0")
	b := a.WithVersion("2.0")

	assert.Equal(t, "1.0", a.Version())
	assert.Equal(t, "2.0", b.Version())
	assert.Equal(t, "travels", b.ID())
}

func TestProcessDefinition_Keys(t *testing.T) {
	t.Parallel()

	def := newTravelsDefinition()

	assert.Equal(t, NewProcessDefinitionKey("travels", "1.0"), def.Key())
	assert.Equal(t, []NodeKey{
		NewNodeKey("1", def.Key()),
		NewNodeKey("2", def.Key()),
		NewNodeKey("3", def.Key()),
	}, def.NodeKeys())

	node, found := def.Node("2")
	require.True(t, found)
	assert.Equal(t, "Book Flight", node.Name)
	assert.True(t, node.Key(def.Key()).Equal(NewNodeKey("2", def.Key())))

	_, found = def.Node("missing")
	assert.False(t, found)
}

func TestProcessDefinition_Clone(t *testing.T) {
	t.Parallel()

	def := newTravelsDefinition()
	clone := def.Clone()

	require.Equal(t, def, clone)

	clone.Nodes[1].Metadata["UniqueId"] = "changed"
	clone.Roles[0] = "admin"
	clone.Metadata["owner"] = "someone"

	assert.Equal(t, "2", def.Nodes[1].Metadata["UniqueId"])
	assert.Equal(t, "traveller", def.Roles[0])
	assert.Equal(t, "travel-agency", def.Metadata["owner"])
}

func TestProcessDefinition_Validation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		modify    func(*ProcessDefinition)
		fieldName string
		tag       string
	}{
		{
			name:      "missing id",
			modify:    func(d *ProcessDefinition) { d.ID = "" },
			fieldName: "ID",
			tag:       requiredTag,
		},
		{
			name:      "missing version",
			modify:    func(d *ProcessDefinition) { d.Version = "" },
			fieldName: "Version",
			tag:       requiredTag,
		},
		{
			name:      "invalid endpoint",
			modify:    func(d *ProcessDefinition) { d.Endpoint = "not a url" },
			fieldName: "Endpoint",
			tag:       "url",
		},
		{
			name:      "node without id",
			modify:    func(d *ProcessDefinition) { d.Nodes[0].ID = "" },
			fieldName: "ID",
			tag:       requiredTag,
		},
		{
			name:      "node without type",
			modify:    func(d *ProcessDefinition) { d.Nodes[2].Type = "" },
			fieldName: "Type",
			tag:       requiredTag,
		},
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	require.NoError(t, validate.Struct(newTravelsDefinition()))

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			def := newTravelsDefinition()
			tc.modify(def)

			err := validate.Struct(def)
			require.Error(t, err)

			var validationErrors validator.ValidationErrors
			require.True(t, errors.As(err, &validationErrors))

			found := false

			for _, fieldErr := range validationErrors {
				if fieldErr.Field() == tc.fieldName && fieldErr.Tag() == tc.tag {
					found = true

					break
				}
			}

			assert.True(t, found, "Should have %s validation error for %s", tc.tag, tc.fieldName)
		})
	}
}
