package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocument() *Document {
	return &Document{
		Version: "v1",
		Roles: []*RoleDefinition{
			{Code: "MEMBER", Level: 10},
			{Code: "SUPER_ADMIN", Level: 100},
		},
		Permissions: []*PermissionDefinition{
			{Code: "PORTAL_ACCESS", Resource: "portal", Action: "read", Category: "member"},
			{Code: "PORTAL_MANAGE", Resource: "portal", Action: "update", Category: "staff"},
		},
		Resources: []*ResourceDefinition{
			{
				Name:              "portal",
				Permissions:       []string{"PORTAL_ACCESS", "PORTAL_MANAGE"},
				AllowedCategories: []string{"member", "staff"},
			},
		},
	}
}

func TestNewSnapshot(t *testing.T) {
	snap, err := NewSnapshot(testDocument())
	require.NoError(t, err)

	assert.Equal(t, "v1", snap.Version)
	assert.Len(t, snap.Roles, 2)
	assert.Len(t, snap.Resources, 1)

	code, ok := snap.PermissionFor("portal", "read")
	require.True(t, ok)
	assert.Equal(t, "PORTAL_ACCESS", code)

	_, ok = snap.PermissionFor("portal", "delete")
	assert.False(t, ok)
}

func TestNewSnapshot_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Document)
	}{
		{"empty role code", func(d *Document) { d.Roles[0].Code = "" }},
		{"duplicate role", func(d *Document) { d.Roles = append(d.Roles, &RoleDefinition{Code: "MEMBER"}) }},
		{"permission without action", func(d *Document) { d.Permissions[0].Action = "" }},
		{"duplicate resource-action mapping", func(d *Document) {
			d.Permissions = append(d.Permissions,
				&PermissionDefinition{Code: "OTHER", Resource: "portal", Action: "read"})
		}},
		{"empty resource name", func(d *Document) { d.Resources[0].Name = "" }},
		{"resource references unknown permission", func(d *Document) {
			d.Resources[0].Permissions = append(d.Resources[0].Permissions, "NOT_REGISTERED")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDocument()
			tt.mutate(doc)
			_, err := NewSnapshot(doc)
			assert.Error(t, err)
		})
	}
}

func TestNewSnapshot_ContentHashVersion(t *testing.T) {
	doc := testDocument()
	doc.Version = ""

	snap1, err := NewSnapshot(doc)
	require.NoError(t, err)
	require.NotEmpty(t, snap1.Version)

	// Same content hashes to the same version
	doc2 := testDocument()
	doc2.Version = ""
	snap2, err := NewSnapshot(doc2)
	require.NoError(t, err)
	assert.Equal(t, snap1.Version, snap2.Version)

	// Changed content yields a new version
	doc3 := testDocument()
	doc3.Version = ""
	doc3.Roles[0].Level = 20
	snap3, err := NewSnapshot(doc3)
	require.NoError(t, err)
	assert.NotEqual(t, snap1.Version, snap3.Version)
}

func TestRoleLevels(t *testing.T) {
	snap, err := NewSnapshot(testDocument())
	require.NoError(t, err)

	levels := snap.RoleLevels()
	assert.Equal(t, map[string]int{"MEMBER": 10, "SUPER_ADMIN": 100}, levels)
}
