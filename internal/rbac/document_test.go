package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		module  string
		allowed []Action
		denied  []Action
	}{
		{
			name:    "flat list",
			doc:     `{"assets": ["view", "create"]}`,
			module:  "assets",
			allowed: []Action{ActionView, ActionCreate},
		},
		{
			name:    "boolean map",
			doc:     `{"assets": {"view": true, "delete": false}}`,
			module:  "assets",
			allowed: []Action{ActionView},
			denied:  []Action{ActionDelete},
		},
		{
			name:    "permissions object",
			doc:     `{"borrow": {"permissions": ["view", "approve"], "deny": ["delete"]}}`,
			module:  "borrow",
			allowed: []Action{ActionView, ActionApprove},
			denied:  []Action{ActionDelete},
		},
		{
			name:    "scope qualified",
			doc:     `{"scope": "department", "modules": {"assets": {"permissions": ["view"]}}}`,
			module:  "assets",
			allowed: []Action{ActionView},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseDocument(tt.doc)
			require.NoError(t, err)

			grant, ok := set[tt.module]
			require.True(t, ok)
			for _, a := range tt.allowed {
				assert.True(t, grant.allows(a), "expected %s allowed", a)
			}
			for _, a := range tt.denied {
				assert.True(t, grant.denies(a), "expected %s denied", a)
			}
		})
	}
}

func TestParseDocument_EmptyIsDenyAll(t *testing.T) {
	for _, doc := range []string{"", "  ", "{}", "null"} {
		set, err := ParseDocument(doc)
		require.NoError(t, err, doc)
		assert.Empty(t, set, doc)
	}
}

func TestParseDocument_Malformed(t *testing.T) {
	for _, doc := range []string{
		`{`,
		`[1, 2]`,
		`"assets"`,
		`{"assets": 3}`,
		`{"assets": {"view": "yes"}}`,
		`{"assets": {"permissions": "view"}}`,
		`{"": ["view"]}`,
	} {
		_, err := ParseDocument(doc)
		assert.ErrorIs(t, err, ErrInvalidDocument, doc)
	}
}

func TestPermissionSet_Validate(t *testing.T) {
	set, err := ParseDocument(`{"assets": ["view", "fly"]}`)
	require.NoError(t, err)
	assert.ErrorIs(t, set.Validate(nil), ErrInvalidDocument)

	set, err = ParseDocument(`{"garden": ["view"]}`)
	require.NoError(t, err)
	assert.NoError(t, set.Validate(nil))
	assert.ErrorIs(t, set.Validate([]string{"assets", "borrow"}), ErrInvalidDocument)

	set, err = ParseDocument(`{"assets": {"view": true, "delete": false}}`)
	require.NoError(t, err)
	assert.NoError(t, set.Validate([]string{"assets"}))
}

func TestPermissionSet_EncodeIsCanonical(t *testing.T) {
	set, err := ParseDocument(`{"modules": {"assets": {"view": true, "create": true, "delete": false}}}`)
	require.NoError(t, err)

	encoded, err := set.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"assets": {"permissions": ["create", "view"], "deny": ["delete"]}}`, encoded)

	again, err := ParseDocument(encoded)
	require.NoError(t, err)
	assert.Equal(t, set, again)
}
