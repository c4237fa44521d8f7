package notification

import (
	"fmt"
	"strings"
	"unicode"

	"projectnotify/internal/config"
	"projectnotify/internal/constants"
	"projectnotify/internal/directory"
)

const defaultColor = "#67c5ef"

type projectCategory struct {
	Label string
	Color string
}

// projectCategories maps the project's category tag to presentation label
// and color. Unknown tags fall back to defaultColor and the raw tag.
var projectCategories = map[string]projectCategory{
	"app_dev":           {Label: "Full App", Color: "#96d957"},
	"generic":           {Label: "Work Project", Color: "#b47dd6"},
	"visual_prototype":  {Label: "Design & Prototype", Color: "#67c5ef"},
	"visual_design":     {Label: "Design", Color: "#67c5ef"},
	"app":               {Label: "App", Color: "#96d957"},
	"quality_assurance": {Label: "QA", Color: "#96d957"},
	"chatbot":           {Label: "Chatbot", Color: "#96d957"},
	"website":           {Label: "Website", Color: "#96d957"},
}

func categoryLabel(tag string) string {
	if c, ok := projectCategories[tag]; ok {
		return c.Label
	}
	return tag
}

func categoryColor(tag string) string {
	if c, ok := projectCategories[tag]; ok {
		return c.Color
	}
	return defaultColor
}

func projectURL(connectURL string, id int64) string {
	return fmt.Sprintf("%s/projects/%d/", strings.TrimRight(connectURL, "/"), id)
}

// truncateAtWord shortens s to at most limit runes, cutting back to the last
// word boundary and appending an ellipsis when anything was dropped.
func truncateAtWord(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !unicode.IsSpace(runes[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return strings.TrimRight(string(runes[:cut]), " \t\n") + "..."
}

// Discourse topic templates. Titles and bodies follow the copy the support
// team maintains; the body links back to the project page.

func createdTopic(p *directory.Project, projectURL string) TopicNotice {
	return TopicNotice{
		ProjectID: p.ID,
		Title:     "Your project has been created, and we're ready for your specification",
		Body: fmt.Sprintf(`Hello, Coder here! Your project '%s' has been created successfully. For your next step, please head over to the <a href="%sspecification/" rel="nofollow">Specification</a> section and answer all of the required questions. If you already have a document with your requirements, just verify it against our checklist and then upload it. Once you're done, hit the "Submit for Review" button on the Specification. Get stuck or need help? Email us at <a href="mailto:support@topcoder.com?subject=Question%%20Regarding%%20My%%20New%%20Topcoder%%20Connect%%20Project" rel="nofollow">support@topcoder.com</a>.`, p.Name, projectURL),
	}
}

func submittedForReviewTopic(p *directory.Project, projectURL string) TopicNotice {
	return TopicNotice{
		ProjectID: p.ID,
		Title:     "Your project has been submitted for review",
		Body:      fmt.Sprintf(`Hello, it's Coder again. Thanks for submitting your project <a href="%s" rel="nofollow">%s</a>! I've used my super computational powers to route it to one of our trusty humans. They'll get back to you in 1-2 business days.`, projectURL, p.Name),
	}
}

func activatedTopic(p *directory.Project, projectURL string) TopicNotice {
	return TopicNotice{
		ProjectID: p.ID,
		Title:     "Work on your project has begun",
		Body:      fmt.Sprintf(`Good news, everyone! Work on project %s has kicked off. Please keep an eye on the <a href="%s" rel="nofollow">Dashboard</a> section (or your email inbox) for the latest status updates.`, p.Name, projectURL),
	}
}

func canceledTopic(p *directory.Project, projectURL string) TopicNotice {
	return TopicNotice{
		ProjectID: p.ID,
		Title:     "Your project has been canceled",
		Body:      fmt.Sprintf(`Project <a href="%s" rel="nofollow">%s</a> has been canceled. If you think this may have been a mistake, please reply to this message immediately. Otherwise, looking forward to your next project. Coder signing off....`, projectURL, p.Name),
	}
}

func completedTopic(p *directory.Project, projectURL string) TopicNotice {
	return TopicNotice{
		ProjectID: p.ID,
		Title:     "Your project has been completed",
		Body:      fmt.Sprintf(`Project <a href="%s" rel="nofollow">%s</a> is finished! Well done, team. Looking forward to seeing your next project soon. Coder signing off....`, projectURL, p.Name),
	}
}

func memberAddedTopic(p *directory.Project, u *directory.User, role, projectURL string) TopicNotice {
	name := u.FirstName + " " + u.LastName
	switch role {
	case constants.RoleManager:
		return TopicNotice{
			ProjectID: p.ID,
			Title:     "A project manager has joined your project",
			Body:      fmt.Sprintf(`%s has joined your project <a href="%s" rel="nofollow">%s</a> as a project manager.`, name, projectURL, p.Name),
		}
	case constants.RoleCopilot:
		return TopicNotice{
			ProjectID: p.ID,
			Title:     "A copilot has joined your project",
			Body:      fmt.Sprintf(`%s has joined your project <a href="%s" rel="nofollow">%s</a> as a copilot.`, name, projectURL, p.Name),
		}
	default:
		return TopicNotice{
			ProjectID: p.ID,
			Title:     "A new team member has joined your project",
			Body:      fmt.Sprintf(`%s has joined project <a href="%s" rel="nofollow">%s</a>. Welcome %s! Looking forward to working with you.`, name, projectURL, p.Name, u.FirstName),
		}
	}
}

func memberLeftTopic(p *directory.Project, u *directory.User, projectURL string) TopicNotice {
	return TopicNotice{
		ProjectID: p.ID,
		Title:     "A team member has left your project",
		Body:      fmt.Sprintf(`%s %s has left project <a href="%s" rel="nofollow">%s</a>. Thanks for all your work %s.`, u.FirstName, u.LastName, projectURL, p.Name, u.FirstName),
	}
}

func memberRemovedTopic(p *directory.Project, u *directory.User, projectURL string) TopicNotice {
	return TopicNotice{
		ProjectID: p.ID,
		Title:     "A team member has left your project",
		Body:      fmt.Sprintf(`%s %s is no longer part of project <a href="%s" rel="nofollow">%s</a>.`, u.FirstName, u.LastName, projectURL, p.Name),
	}
}

func ownerChangedTopic(p *directory.Project, u *directory.User, projectURL string) TopicNotice {
	return TopicNotice{
		ProjectID: p.ID,
		Title:     "Your project has a new owner",
		Body:      fmt.Sprintf(`%s %s is now responsible for project <a href="%s" rel="nofollow">%s</a>. Good luck %s.`, u.FirstName, u.LastName, projectURL, p.Name, u.FirstName),
	}
}

// chatNotice builds the common chat message frame around a project: channel,
// color by category, title/deep link, truncated description, timestamp.
func chatNotice(cfg config.NotificationsConfig, p *directory.Project, channel, iconURL, pretext string, fields []Field) ChatMessage {
	return ChatMessage{
		Username: cfg.Username,
		IconURL:  iconURL,
		Channel:  channel,
		Attachments: []Attachment{{
			Color:     categoryColor(p.Type),
			Fallback:  pretext,
			Pretext:   pretext,
			Title:     p.Name,
			TitleLink: projectURL(cfg.ConnectURL, p.ID),
			Text:      truncateAtWord(p.Description, constants.ChatTextLimit),
			Fields:    fields,
			Ts:        p.UpdatedAt.Unix(),
		}},
	}
}

func managerFields(p *directory.Project, owner *directory.User) []Field {
	ownerName := ""
	if owner != nil {
		ownerName = owner.FirstName + " " + owner.LastName
	}
	return []Field{
		{Title: "Ref Code", Value: p.Details.UTM.Code, Short: false},
		{Title: "Owner", Value: ownerName, Short: false},
		{Title: "Project Type", Value: categoryLabel(p.Type), Short: false},
	}
}

func copilotFields(p *directory.Project) []Field {
	return []Field{
		{Title: "Project Type", Value: categoryLabel(p.Type), Short: false},
	}
}

func projectInReviewNotice(cfg config.NotificationsConfig, p *directory.Project, owner *directory.User) ChatMessage {
	return chatNotice(cfg, p, cfg.ManagerChannel, cfg.IconURL,
		"A project is ready to be reviewed.", managerFields(p, owner))
}

func projectCompletedNotice(cfg config.NotificationsConfig, p *directory.Project, owner *directory.User) ChatMessage {
	return chatNotice(cfg, p, cfg.ManagerChannel, cfg.IconURL,
		"A project is completed.", managerFields(p, owner))
}

func projectUnclaimedNotice(cfg config.NotificationsConfig, p *directory.Project) ChatMessage {
	return chatNotice(cfg, p, cfg.CopilotChannel, cfg.IconURL,
		"A project has been reviewed and needs a copilot. Please check it out and claim it.", copilotFields(p))
}

func projectStillUnclaimedNotice(cfg config.NotificationsConfig, p *directory.Project) ChatMessage {
	return chatNotice(cfg, p, cfg.CopilotChannel, cfg.ErrorIconURL,
		"We're still looking for a copilot for a reviewed project. Please check it out and claim it.", copilotFields(p))
}

func projectClaimedNotice(cfg config.NotificationsConfig, p *directory.Project, u *directory.User) ChatMessage {
	pretext := fmt.Sprintf("%s %s has claimed a project. Welcome to the team!", u.FirstName, u.LastName)
	return chatNotice(cfg, p, cfg.CopilotChannel, cfg.ClaimedIconURL, pretext, copilotFields(p))
}
