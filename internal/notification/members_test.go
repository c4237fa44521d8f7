package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectnotify/internal/constants"
	"projectnotify/internal/directory"
)

func TestMemberAdded(t *testing.T) {
	user := &directory.User{UserID: 42, Handle: "magrathea", FirstName: "Arthur", LastName: "Dent"}

	newDir := func(p *directory.Project) *fakeDirectory {
		return &fakeDirectory{
			projects: map[int64]*directory.Project{p.ID: p},
			users:    map[int64]*directory.User{42: user},
		}
	}

	t.Run("customer joining posts the generic welcome", func(t *testing.T) {
		engine := newTestEngine(newDir(testProject(1, constants.StatusActive)))

		bundle, err := engine.MemberAdded(context.Background(), &MemberEvent{
			ProjectID: 1, UserID: 42, Role: constants.RoleCustomer,
		})
		require.NoError(t, err)
		require.Len(t, bundle.Discourse, 1)
		assert.Equal(t, "A new team member has joined your project", bundle.Discourse[0].Title)
		assert.Empty(t, bundle.CopilotChat)
	})

	t.Run("manager joining posts the manager notice", func(t *testing.T) {
		engine := newTestEngine(newDir(testProject(1, constants.StatusActive)))

		bundle, err := engine.MemberAdded(context.Background(), &MemberEvent{
			ProjectID: 1, UserID: 42, Role: constants.RoleManager,
		})
		require.NoError(t, err)
		require.Len(t, bundle.Discourse, 1)
		assert.Equal(t, "A project manager has joined your project", bundle.Discourse[0].Title)
	})

	t.Run("first copilot on a reviewed project claims it", func(t *testing.T) {
		project := testProject(1, constants.StatusReviewed,
			directory.Member{UserID: 42, Role: constants.RoleCopilot})
		engine := newTestEngine(newDir(project))

		bundle, err := engine.MemberAdded(context.Background(), &MemberEvent{
			ProjectID: 1, UserID: 42, Role: constants.RoleCopilot,
		})
		require.NoError(t, err)
		require.Len(t, bundle.CopilotChat, 1)
		assert.Contains(t, bundle.CopilotChat[0].Attachments[0].Pretext, "Arthur Dent has claimed a project")
	})

	t.Run("second copilot on an active project still claims", func(t *testing.T) {
		project := testProject(1, constants.StatusActive,
			directory.Member{UserID: 21, Role: constants.RoleCopilot},
			directory.Member{UserID: 42, Role: constants.RoleCopilot})
		engine := newTestEngine(newDir(project))

		bundle, err := engine.MemberAdded(context.Background(), &MemberEvent{
			ProjectID: 1, UserID: 42, Role: constants.RoleCopilot,
		})
		require.NoError(t, err)
		assert.Len(t, bundle.CopilotChat, 1)
	})

	t.Run("third copilot does not claim", func(t *testing.T) {
		project := testProject(1, constants.StatusActive,
			directory.Member{UserID: 21, Role: constants.RoleCopilot},
			directory.Member{UserID: 22, Role: constants.RoleCopilot},
			directory.Member{UserID: 42, Role: constants.RoleCopilot})
		engine := newTestEngine(newDir(project))

		bundle, err := engine.MemberAdded(context.Background(), &MemberEvent{
			ProjectID: 1, UserID: 42, Role: constants.RoleCopilot,
		})
		require.NoError(t, err)
		assert.Empty(t, bundle.CopilotChat)
	})

	t.Run("copilot joining a draft project does not claim", func(t *testing.T) {
		engine := newTestEngine(newDir(testProject(1, constants.StatusDraft)))

		bundle, err := engine.MemberAdded(context.Background(), &MemberEvent{
			ProjectID: 1, UserID: 42, Role: constants.RoleCopilot,
		})
		require.NoError(t, err)
		assert.Empty(t, bundle.CopilotChat)
	})

	t.Run("missing project propagates not found", func(t *testing.T) {
		engine := newTestEngine(&fakeDirectory{})

		_, err := engine.MemberAdded(context.Background(), &MemberEvent{ProjectID: 9, UserID: 42})
		assert.ErrorIs(t, err, directory.ErrNotFound)
	})
}

func TestMemberRemoved(t *testing.T) {
	dir := &fakeDirectory{
		projects: map[int64]*directory.Project{1: testProject(1, constants.StatusActive)},
		users: map[int64]*directory.User{
			42: {UserID: 42, FirstName: "Arthur", LastName: "Dent"},
		},
	}
	engine := newTestEngine(dir)

	t.Run("member removed themselves", func(t *testing.T) {
		bundle, err := engine.MemberRemoved(context.Background(), &MemberEvent{
			ProjectID: 1, UserID: 42, UpdatedBy: 42,
		})
		require.NoError(t, err)
		require.Len(t, bundle.Discourse, 1)
		assert.Contains(t, bundle.Discourse[0].Body, "has left project")
		assert.Contains(t, bundle.Discourse[0].Body, "Thanks for all your work")
	})

	t.Run("member removed by someone else", func(t *testing.T) {
		bundle, err := engine.MemberRemoved(context.Background(), &MemberEvent{
			ProjectID: 1, UserID: 42, UpdatedBy: 7,
		})
		require.NoError(t, err)
		require.Len(t, bundle.Discourse, 1)
		assert.Contains(t, bundle.Discourse[0].Body, "is no longer part of project")
	})
}

func TestMemberUpdated(t *testing.T) {
	dir := &fakeDirectory{
		projects: map[int64]*directory.Project{1: testProject(1, constants.StatusActive)},
		users: map[int64]*directory.User{
			42: {UserID: 42, FirstName: "Arthur", LastName: "Dent"},
		},
	}
	engine := newTestEngine(dir)

	t.Run("primary customer change announces the new owner", func(t *testing.T) {
		bundle, err := engine.MemberUpdated(context.Background(), &MemberUpdatedEvent{
			Updated: MemberChange{ProjectID: 1, UserID: 42, Role: constants.RoleCustomer, IsPrimary: true},
		})
		require.NoError(t, err)
		require.Len(t, bundle.Discourse, 1)
		assert.Equal(t, "Your project has a new owner", bundle.Discourse[0].Title)
		assert.Contains(t, bundle.Discourse[0].Body, "Arthur Dent")
	})

	t.Run("non-primary customer is a no-op", func(t *testing.T) {
		bundle, err := engine.MemberUpdated(context.Background(), &MemberUpdatedEvent{
			Updated: MemberChange{ProjectID: 1, UserID: 42, Role: constants.RoleCustomer, IsPrimary: false},
		})
		require.NoError(t, err)
		assert.True(t, bundle.Empty())
	})

	t.Run("non-customer role is a no-op", func(t *testing.T) {
		bundle, err := engine.MemberUpdated(context.Background(), &MemberUpdatedEvent{
			Updated: MemberChange{ProjectID: 1, UserID: 42, Role: constants.RoleManager, IsPrimary: true},
		})
		require.NoError(t, err)
		assert.True(t, bundle.Empty())
	})
}
