package notification

import (
	"context"

	"projectnotify/internal/config"
	"projectnotify/internal/constants"
	"projectnotify/internal/directory"
	"projectnotify/internal/logger"
)

// Engine maps one decoded event plus fresh directory data to a Bundle. It is
// side-effect free apart from directory reads; publishing is the pipeline's
// job.
type Engine struct {
	directory directory.Client
	cfg       config.NotificationsConfig
	logger    logger.Logger
}

func NewEngine(dir directory.Client, cfg config.NotificationsConfig, log logger.Logger) *Engine {
	return &Engine{
		directory: dir,
		cfg:       cfg,
		logger:    log,
	}
}

// ProjectDraftCreated produces the "project created" topic. Projects without
// a primary customer member have nobody to address, so the bundle stays
// empty.
func (e *Engine) ProjectDraftCreated(ctx context.Context, project *directory.Project) (*Bundle, error) {
	bundle := &Bundle{}

	if _, ok := project.Owner(); !ok {
		e.logger.DebugwCtx(ctx, "Draft project has no owner, skipping",
			"project_id", project.ID,
		)
		return bundle, nil
	}

	bundle.Discourse = append(bundle.Discourse,
		createdTopic(project, projectURL(e.cfg.ConnectURL, project.ID)))
	return bundle, nil
}

// ProjectUpdated handles status transitions. Updates that do not change the
// status are a no-op. raw is the original event payload; it becomes the
// delayed reminder body verbatim so the re-queued message round-trips.
func (e *Engine) ProjectUpdated(ctx context.Context, event *ProjectUpdatedEvent, raw []byte) (*Bundle, error) {
	bundle := &Bundle{}

	if event.Updated.Status == event.Original.Status {
		return bundle, nil
	}

	project := &event.Updated
	url := projectURL(e.cfg.ConnectURL, project.ID)

	switch project.Status {
	case constants.StatusInReview:
		owner, err := e.resolveOwner(ctx, project)
		if err != nil {
			return nil, err
		}
		bundle.Discourse = append(bundle.Discourse, submittedForReviewTopic(project, url))
		bundle.ManagerChat = append(bundle.ManagerChat, projectInReviewNotice(e.cfg, project, owner))

	case constants.StatusReviewed:
		if len(project.MembersByRole(constants.RoleCopilot)) == 0 {
			bundle.CopilotChat = append(bundle.CopilotChat, projectUnclaimedNotice(e.cfg, project))
			bundle.Delayed = raw
		}

	case constants.StatusActive:
		bundle.Discourse = append(bundle.Discourse, activatedTopic(project, url))

	case constants.StatusCancelled:
		bundle.Discourse = append(bundle.Discourse, canceledTopic(project, url))

	case constants.StatusCompleted:
		owner, err := e.resolveOwner(ctx, project)
		if err != nil {
			return nil, err
		}
		bundle.Discourse = append(bundle.Discourse, completedTopic(project, url))
		bundle.ManagerChat = append(bundle.ManagerChat, projectCompletedNotice(e.cfg, project, owner))

	default:
		// Transitions into draft or anything unrecognized notify nobody.
	}

	return bundle, nil
}

// ProjectUnclaimed re-checks a reviewed project for a copilot. While the
// condition still holds it notifies the copilot channel and re-arms the
// reminder; once a copilot appears or the project moves on, the chain ends.
func (e *Engine) ProjectUnclaimed(ctx context.Context, event *ReminderEvent, raw []byte) (*Bundle, error) {
	project, err := e.directory.GetProjectByID(ctx, event.Updated.ID)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{}
	if project.Status == constants.StatusReviewed &&
		len(project.MembersByRole(constants.RoleCopilot)) == 0 {
		bundle.CopilotChat = append(bundle.CopilotChat, projectStillUnclaimedNotice(e.cfg, project))
		bundle.Delayed = raw
	}
	return bundle, nil
}

// resolveOwner fetches the owner's user record for chat annotation. A
// project without an owner member is fine; a lookup failure for an existing
// owner is not.
func (e *Engine) resolveOwner(ctx context.Context, project *directory.Project) (*directory.User, error) {
	owner, ok := project.Owner()
	if !ok {
		return nil, nil
	}
	return e.directory.GetUserByID(ctx, owner.UserID)
}
