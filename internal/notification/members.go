package notification

import (
	"context"

	"projectnotify/internal/constants"
	"projectnotify/internal/directory"
)

// MemberAdded produces a discourse notice keyed by the new member's role.
// When a copilot joins a project that is actually looking for one, the
// copilot channel gets a "claimed" notice as well.
func (e *Engine) MemberAdded(ctx context.Context, event *MemberEvent) (*Bundle, error) {
	project, err := e.directory.GetProjectByID(ctx, event.ProjectID)
	if err != nil {
		return nil, err
	}
	user, err := e.directory.GetUserByID(ctx, event.UserID)
	if err != nil {
		return nil, err
	}

	url := projectURL(e.cfg.ConnectURL, project.ID)
	bundle := &Bundle{
		Discourse: []TopicNotice{memberAddedTopic(project, user, event.Role, url)},
	}

	if event.Role == constants.RoleCopilot && e.copilotWanted(project, event.UserID) {
		bundle.CopilotChat = append(bundle.CopilotChat, projectClaimedNotice(e.cfg, project, user))
	}

	return bundle, nil
}

// copilotWanted reports whether a copilot joining counts as claiming the
// project: the project is active or reviewed and fewer than two other
// copilots are already on it.
func (e *Engine) copilotWanted(project *directory.Project, addedUserID int64) bool {
	if project.Status != constants.StatusActive && project.Status != constants.StatusReviewed {
		return false
	}

	others := 0
	for _, m := range project.MembersByRole(constants.RoleCopilot) {
		if m.UserID != addedUserID {
			others++
		}
	}
	return others < 2
}

// MemberRemoved distinguishes a member removing themselves ("left") from
// being removed by someone else.
func (e *Engine) MemberRemoved(ctx context.Context, event *MemberEvent) (*Bundle, error) {
	project, err := e.directory.GetProjectByID(ctx, event.ProjectID)
	if err != nil {
		return nil, err
	}
	user, err := e.directory.GetUserByID(ctx, event.UserID)
	if err != nil {
		return nil, err
	}

	url := projectURL(e.cfg.ConnectURL, project.ID)
	notice := memberRemovedTopic(project, user, url)
	if event.UpdatedBy == event.UserID {
		notice = memberLeftTopic(project, user, url)
	}
	return &Bundle{
		Discourse: []TopicNotice{notice},
	}, nil
}

// MemberUpdated only cares about ownership changes: the updated member must
// be the primary customer. Everything else is a no-op.
func (e *Engine) MemberUpdated(ctx context.Context, event *MemberUpdatedEvent) (*Bundle, error) {
	bundle := &Bundle{}

	if event.Updated.Role != constants.RoleCustomer || !event.Updated.IsPrimary {
		return bundle, nil
	}

	project, err := e.directory.GetProjectByID(ctx, event.Updated.ProjectID)
	if err != nil {
		return nil, err
	}
	user, err := e.directory.GetUserByID(ctx, event.Updated.UserID)
	if err != nil {
		return nil, err
	}

	url := projectURL(e.cfg.ConnectURL, project.ID)
	bundle.Discourse = append(bundle.Discourse, ownerChangedTopic(project, user, url))
	return bundle, nil
}
