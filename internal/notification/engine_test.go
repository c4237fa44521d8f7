package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectnotify/internal/config"
	"projectnotify/internal/constants"
	"projectnotify/internal/directory"
	"projectnotify/internal/logger"
)

type fakeDirectory struct {
	projects map[int64]*directory.Project
	users    map[int64]*directory.User
	topics   []directory.Topic
	err      error
}

func (f *fakeDirectory) GetProjectByID(ctx context.Context, id int64) (*directory.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %d", directory.ErrNotFound, id)
	}
	return p, nil
}

func (f *fakeDirectory) GetUserByID(ctx context.Context, id int64) (*directory.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %d", directory.ErrNotFound, id)
	}
	return u, nil
}

func (f *fakeDirectory) GetSystemToken(ctx context.Context) (string, error) {
	return "test-token", nil
}

func (f *fakeDirectory) CreateTopic(ctx context.Context, topic directory.Topic) error {
	if f.err != nil {
		return f.err
	}
	f.topics = append(f.topics, topic)
	return nil
}

func testNotificationsConfig() config.NotificationsConfig {
	return config.NotificationsConfig{
		ConnectURL:     "https://connect.example.com",
		ManagerChannel: "#managers",
		CopilotChannel: "#copilots",
		Username:       "coder-bot",
		IconURL:        "https://example.com/bot.png",
		ErrorIconURL:   "https://example.com/error.png",
		ClaimedIconURL: "https://example.com/grin.png",
	}
}

func newTestEngine(dir directory.Client) *Engine {
	return NewEngine(dir, testNotificationsConfig(), logger.NopLogger())
}

func testProject(id int64, status string, members ...directory.Member) *directory.Project {
	return &directory.Project{
		ID:          id,
		Name:        "test",
		Description: "a test project",
		Status:      status,
		Type:        "app_dev",
		Members:     members,
		UpdatedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestProjectDraftCreated(t *testing.T) {
	engine := newTestEngine(&fakeDirectory{})

	t.Run("project with owner gets a created topic", func(t *testing.T) {
		project := testProject(1, constants.StatusDraft,
			directory.Member{UserID: 11, Role: constants.RoleCustomer, IsPrimary: true})

		bundle, err := engine.ProjectDraftCreated(context.Background(), project)
		require.NoError(t, err)
		require.Len(t, bundle.Discourse, 1)
		assert.Equal(t, int64(1), bundle.Discourse[0].ProjectID)
		assert.Contains(t, bundle.Discourse[0].Body, "'test'")
		assert.Contains(t, bundle.Discourse[0].Body, "https://connect.example.com/projects/1/")
		assert.Empty(t, bundle.ManagerChat)
		assert.Nil(t, bundle.Delayed)
	})

	t.Run("project without primary customer is a no-op", func(t *testing.T) {
		project := testProject(2, constants.StatusDraft,
			directory.Member{UserID: 11, Role: constants.RoleCustomer, IsPrimary: false},
			directory.Member{UserID: 12, Role: constants.RoleManager, IsPrimary: true})

		bundle, err := engine.ProjectDraftCreated(context.Background(), project)
		require.NoError(t, err)
		assert.True(t, bundle.Empty())
	})
}

func TestProjectUpdatedNoTransition(t *testing.T) {
	engine := newTestEngine(&fakeDirectory{})

	event := &ProjectUpdatedEvent{
		Original: *testProject(1, constants.StatusActive),
		Updated:  *testProject(1, constants.StatusActive),
	}

	bundle, err := engine.ProjectUpdated(context.Background(), event, nil)
	require.NoError(t, err)
	assert.True(t, bundle.Empty())
}

func TestProjectUpdatedInReview(t *testing.T) {
	dir := &fakeDirectory{
		users: map[int64]*directory.User{
			8547899: {UserID: 8547899, FirstName: "F_user", LastName: "L_user"},
		},
	}
	engine := newTestEngine(dir)

	event := &ProjectUpdatedEvent{
		Original: *testProject(1, constants.StatusDraft),
		Updated: *testProject(1, constants.StatusInReview,
			directory.Member{UserID: 8547899, Role: constants.RoleCustomer, IsPrimary: true}),
	}

	bundle, err := engine.ProjectUpdated(context.Background(), event, nil)
	require.NoError(t, err)

	require.Len(t, bundle.Discourse, 1)
	assert.Equal(t, "Your project has been submitted for review", bundle.Discourse[0].Title)

	require.Len(t, bundle.ManagerChat, 1)
	msg := bundle.ManagerChat[0]
	assert.Equal(t, "#managers", msg.Channel)
	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "A project is ready to be reviewed.", att.Pretext)
	assert.Equal(t, "test", att.Title)

	var ownerValue string
	for _, f := range att.Fields {
		if f.Title == "Owner" {
			ownerValue = f.Value
		}
	}
	assert.Equal(t, "F_user L_user", ownerValue)
	assert.Nil(t, bundle.Delayed)
}

func TestProjectUpdatedReviewed(t *testing.T) {
	engine := newTestEngine(&fakeDirectory{})

	t.Run("no copilot sets delayed and notifies copilot channel", func(t *testing.T) {
		event := &ProjectUpdatedEvent{
			Original: *testProject(1, constants.StatusInReview),
			Updated:  *testProject(1, constants.StatusReviewed),
		}
		raw, err := json.Marshal(event)
		require.NoError(t, err)

		bundle, err := engine.ProjectUpdated(context.Background(), event, raw)
		require.NoError(t, err)

		require.Len(t, bundle.CopilotChat, 1)
		assert.Equal(t, "#copilots", bundle.CopilotChat[0].Channel)
		assert.Equal(t, json.RawMessage(raw), bundle.Delayed)
		assert.Empty(t, bundle.Discourse)
	})

	t.Run("existing copilot means no reminder", func(t *testing.T) {
		event := &ProjectUpdatedEvent{
			Original: *testProject(1, constants.StatusInReview),
			Updated: *testProject(1, constants.StatusReviewed,
				directory.Member{UserID: 21, Role: constants.RoleCopilot}),
		}

		bundle, err := engine.ProjectUpdated(context.Background(), event, []byte("{}"))
		require.NoError(t, err)
		assert.True(t, bundle.Empty())
	})
}

func TestProjectUpdatedTerminalStatuses(t *testing.T) {
	dir := &fakeDirectory{
		users: map[int64]*directory.User{
			11: {UserID: 11, FirstName: "Ann", LastName: "Owner"},
		},
	}
	engine := newTestEngine(dir)

	owner := directory.Member{UserID: 11, Role: constants.RoleCustomer, IsPrimary: true}

	tests := []struct {
		name        string
		status      string
		wantTitle   string
		managerChat int
	}{
		{
			name:      "activated",
			status:    constants.StatusActive,
			wantTitle: "Work on your project has begun",
		},
		{
			name:      "cancelled",
			status:    constants.StatusCancelled,
			wantTitle: "Your project has been canceled",
		},
		{
			name:        "completed",
			status:      constants.StatusCompleted,
			wantTitle:   "Your project has been completed",
			managerChat: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &ProjectUpdatedEvent{
				Original: *testProject(1, constants.StatusDraft, owner),
				Updated:  *testProject(1, tt.status, owner),
			}

			bundle, err := engine.ProjectUpdated(context.Background(), event, nil)
			require.NoError(t, err)
			require.Len(t, bundle.Discourse, 1)
			assert.Equal(t, tt.wantTitle, bundle.Discourse[0].Title)
			assert.Len(t, bundle.ManagerChat, tt.managerChat)
			assert.Nil(t, bundle.Delayed)
		})
	}
}

func TestProjectUpdatedUnknownStatus(t *testing.T) {
	engine := newTestEngine(&fakeDirectory{})

	event := &ProjectUpdatedEvent{
		Original: *testProject(1, constants.StatusDraft),
		Updated:  *testProject(1, "paused"),
	}

	bundle, err := engine.ProjectUpdated(context.Background(), event, nil)
	require.NoError(t, err)
	assert.True(t, bundle.Empty())
}

func TestProjectUnclaimed(t *testing.T) {
	raw := []byte(`{"updated":{"id":1}}`)
	event := &ReminderEvent{}
	require.NoError(t, json.Unmarshal(raw, event))

	t.Run("still reviewed and unclaimed re-arms", func(t *testing.T) {
		dir := &fakeDirectory{
			projects: map[int64]*directory.Project{
				1: testProject(1, constants.StatusReviewed),
			},
		}
		engine := newTestEngine(dir)

		bundle, err := engine.ProjectUnclaimed(context.Background(), event, raw)
		require.NoError(t, err)
		require.Len(t, bundle.CopilotChat, 1)
		assert.Contains(t, bundle.CopilotChat[0].Attachments[0].Pretext, "still looking")
		assert.Equal(t, json.RawMessage(raw), bundle.Delayed)
	})

	t.Run("copilot assigned ends the chain", func(t *testing.T) {
		dir := &fakeDirectory{
			projects: map[int64]*directory.Project{
				1: testProject(1, constants.StatusReviewed,
					directory.Member{UserID: 21, Role: constants.RoleCopilot}),
			},
		}
		engine := newTestEngine(dir)

		bundle, err := engine.ProjectUnclaimed(context.Background(), event, raw)
		require.NoError(t, err)
		assert.True(t, bundle.Empty())
	})

	t.Run("project moved on ends the chain", func(t *testing.T) {
		dir := &fakeDirectory{
			projects: map[int64]*directory.Project{
				1: testProject(1, constants.StatusActive),
			},
		}
		engine := newTestEngine(dir)

		bundle, err := engine.ProjectUnclaimed(context.Background(), event, raw)
		require.NoError(t, err)
		assert.True(t, bundle.Empty())
	})

	t.Run("missing project propagates not found", func(t *testing.T) {
		engine := newTestEngine(&fakeDirectory{})

		_, err := engine.ProjectUnclaimed(context.Background(), event, raw)
		assert.ErrorIs(t, err, directory.ErrNotFound)
	})
}
