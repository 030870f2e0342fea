package pipeline

import (
	"github.com/calvinalkan/clsync/internal/changelog"
	"github.com/calvinalkan/clsync/internal/config"
)

// Settings are the fixed parameters of one sync run.
type Settings struct {
	Project       string
	Component     string // epic filter and component of new epics; may be empty
	DoneStatus    string // transition target after creation
	InitialStatus string // status recorded when the transition does not happen
	StoryType     string
	DefectType    string
	Identity      string // reporter and assignee of created issues
}

// SettingsFromConfig derives run settings from configuration.
func SettingsFromConfig(cfg config.Config, identity string) Settings {
	return Settings{
		Project:       cfg.Project,
		Component:     cfg.Component,
		DoneStatus:    cfg.DoneStatus,
		InitialStatus: cfg.InitialStatus,
		StoryType:     cfg.IssueTypes.Story,
		DefectType:    cfg.IssueTypes.Defect,
		Identity:      identity,
	}
}

// IssueType returns the tracker issue type for a category.
func (s Settings) IssueType(c changelog.Category) string {
	if c == changelog.CategoryDefect {
		return s.DefectType
	}

	return s.StoryType
}
