package models

import (
	"context"
	"errors"

	contextutils "appfeedback/internal/utils"
)

// EntryPoint is the in-app flow a report was started from. The set of
// implementations is closed to this package.
type EntryPoint interface {
	Name() EntryPointName
	Validate() error
	isEntryPoint()
}

// ContentReferences resolves content ids that reports point at. It returns
// an error matching contextutils.ErrRecordNotFound for an unknown exploration.
type ContentReferences interface {
	StoryIDForExploration(ctx context.Context, explorationID string) (string, error)
}

// NavigationDrawerEntryPoint is a report started from the navigation drawer.
type NavigationDrawerEntryPoint struct{}

func (NavigationDrawerEntryPoint) Name() EntryPointName { return EntryPointNavigationDrawer }
func (NavigationDrawerEntryPoint) Validate() error      { return nil }
func (NavigationDrawerEntryPoint) isEntryPoint()        {}

// LessonPlayerEntryPoint is a report started while playing an exploration.
type LessonPlayerEntryPoint struct {
	TopicID       string `json:"topic_id" validate:"required"`
	StoryID       string `json:"story_id" validate:"required"`
	ExplorationID string `json:"exploration_id" validate:"required"`
}

func (LessonPlayerEntryPoint) Name() EntryPointName { return EntryPointLessonPlayer }
func (LessonPlayerEntryPoint) isEntryPoint()        {}

// Validate checks that every cross reference is present.
func (e LessonPlayerEntryPoint) Validate() error {
	return contextutils.ValidateStruct(e)
}

// ValidateReferences checks that the exploration belongs to the story.
func (e LessonPlayerEntryPoint) ValidateReferences(ctx context.Context, refs ContentReferences) error {
	storyID, err := refs.StoryIDForExploration(ctx, e.ExplorationID)
	if err != nil {
		if errors.Is(err, contextutils.ErrRecordNotFound) {
			return contextutils.NewValidationError("exploration_id", "exploration %s does not exist", e.ExplorationID)
		}
		return contextutils.WrapError(err, "failed to resolve exploration story")
	}
	if storyID != e.StoryID {
		return contextutils.NewValidationError("exploration_id",
			"exploration %s is not part of story %s, it belongs to story %s", e.ExplorationID, e.StoryID, storyID)
	}
	return nil
}

// RevisionCardEntryPoint is a report started from a subtopic revision card.
type RevisionCardEntryPoint struct {
	TopicID    string `json:"topic_id" validate:"required"`
	SubtopicID int    `json:"subtopic_id" validate:"gte=1"`
}

func (RevisionCardEntryPoint) Name() EntryPointName { return EntryPointRevisionCard }
func (RevisionCardEntryPoint) isEntryPoint()        {}

// Validate checks the topic and subtopic references.
func (e RevisionCardEntryPoint) Validate() error {
	return contextutils.ValidateStruct(e)
}

// CrashEntryPoint is a report filed by the crash handler.
type CrashEntryPoint struct{}

func (CrashEntryPoint) Name() EntryPointName { return EntryPointCrash }
func (CrashEntryPoint) Validate() error      { return nil }
func (CrashEntryPoint) isEntryPoint()        {}

// EntryPointFields is the flat form of an entry point, as submitted and as stored.
type EntryPointFields struct {
	Name          EntryPointName `json:"entry_point_name"`
	TopicID       *string        `json:"entry_point_topic_id,omitempty"`
	StoryID       *string        `json:"entry_point_story_id,omitempty"`
	ExplorationID *string        `json:"entry_point_exploration_id,omitempty"`
	SubtopicID    *int           `json:"entry_point_subtopic_id,omitempty"`
}

// FlattenEntryPoint returns the flat fields of e. Fields e does not declare stay nil.
func FlattenEntryPoint(e EntryPoint) EntryPointFields {
	f := EntryPointFields{Name: e.Name()}
	switch v := e.(type) {
	case LessonPlayerEntryPoint:
		f.TopicID, f.StoryID, f.ExplorationID = &v.TopicID, &v.StoryID, &v.ExplorationID
	case RevisionCardEntryPoint:
		f.TopicID, f.SubtopicID = &v.TopicID, &v.SubtopicID
	}
	return f
}

// BuildEntryPoint builds the variant named by f. Cross references the variant
// does not declare must be absent.
func BuildEntryPoint(f EntryPointFields) (EntryPoint, error) {
	undeclared := func(allowed ...string) error {
		present := map[string]bool{
			"entry_point_topic_id":       f.TopicID != nil,
			"entry_point_story_id":       f.StoryID != nil,
			"entry_point_exploration_id": f.ExplorationID != nil,
			"entry_point_subtopic_id":    f.SubtopicID != nil,
		}
		for _, name := range allowed {
			delete(present, name)
		}
		for _, name := range []string{"entry_point_topic_id", "entry_point_story_id", "entry_point_exploration_id", "entry_point_subtopic_id"} {
			if present[name] {
				return contextutils.NewInvalidInputError(name, "present", "not declared by entry point "+string(f.Name))
			}
		}
		return nil
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	switch f.Name {
	case EntryPointNavigationDrawer:
		if err := undeclared(); err != nil {
			return nil, err
		}
		return NavigationDrawerEntryPoint{}, nil
	case EntryPointCrash:
		if err := undeclared(); err != nil {
			return nil, err
		}
		return CrashEntryPoint{}, nil
	case EntryPointLessonPlayer:
		if err := undeclared("entry_point_topic_id", "entry_point_story_id", "entry_point_exploration_id"); err != nil {
			return nil, err
		}
		return LessonPlayerEntryPoint{TopicID: deref(f.TopicID), StoryID: deref(f.StoryID), ExplorationID: deref(f.ExplorationID)}, nil
	case EntryPointRevisionCard:
		if err := undeclared("entry_point_topic_id", "entry_point_subtopic_id"); err != nil {
			return nil, err
		}
		e := RevisionCardEntryPoint{TopicID: deref(f.TopicID)}
		if f.SubtopicID != nil {
			e.SubtopicID = *f.SubtopicID
		}
		return e, nil
	default:
		return nil, contextutils.NewInvalidInputError("entry_point_name", f.Name, "not a recognized entry_point_name")
	}
}
