package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

const fixtureJSON = `{
  "workflows": [
    {
      "id": "wf-support",
      "name": "Support",
      "steps": [
        {"id": "triage", "name": "Triage", "role": "agent", "escalation_role": "supervisor", "position": 1},
        {"id": "review", "name": "Review", "role": "supervisor", "position": 2}
      ],
      "transitions": [{"from_step_id": "triage", "to_step_id": "review"}]
    }
  ],
  "members": [
    {"id": "u2", "name": "Bea", "roles": [{"system": "ticketing", "role": "agent"}]},
    {"id": "u1", "name": "Al", "roles": [{"system": "ticketing", "role": "agent"}]},
    {"id": "u3", "name": "Cy", "active": false, "roles": [{"system": "ticketing", "role": "agent"}]},
    {"id": "root", "name": "Root", "admin": true}
  ],
  "tickets": ["T-1"]
}`

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.json")
	require.NoError(t, os.WriteFile(path, []byte(fixtureJSON), 0o600))

	dir := NewMemory()
	require.NoError(t, dir.LoadFixture(path))
	ctx := context.Background()

	wf, err := dir.GetWorkflow(ctx, "wf-support")
	require.NoError(t, err)
	assert.Equal(t, 1, wf.Version, "version defaults to 1")
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "wf-support", wf.Steps[0].WorkflowID)
	require.NotNil(t, wf.Steps[0].EscalationRole)
	assert.Equal(t, "supervisor", *wf.Steps[0].EscalationRole)

	members, err := dir.ActiveMembers(ctx, "ticketing", "agent")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "u1", members[0].ID, "ordered by id")
	assert.Equal(t, "u2", members[1].ID)

	root, err := dir.GetMember(ctx, "root")
	require.NoError(t, err)
	assert.True(t, root.Admin)
	assert.True(t, root.Active)

	exists, err := dir.TicketExists(ctx, "T-1")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = dir.TicketExists(ctx, "T-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryLookupsAndDeactivation(t *testing.T) {
	ctx := context.Background()
	dir := NewMemory()

	_, err := dir.GetWorkflow(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = dir.GetMember(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	dir.AddMember(domain.Member{ID: "c1", Active: true, Roles: []domain.RoleGrant{{System: "ticketing", Role: "coordinator"}}})
	dir.SetActive("c1", false)
	members, err := dir.ActiveMembers(ctx, "ticketing", "coordinator")
	require.NoError(t, err)
	assert.Empty(t, members)
	member, err := dir.GetMember(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, member.Active)

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	assert.Error(t, dir.LoadFixture(path))
	assert.Error(t, dir.LoadFixture(filepath.Join(t.TempDir(), "absent.json")))
}
