package models

import (
	"testing"

	contextutils "appfeedback/internal/utils"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEntryPoint_RoundTrip(t *testing.T) {
	entryPoints := []EntryPoint{
		NavigationDrawerEntryPoint{},
		CrashEntryPoint{},
		LessonPlayerEntryPoint{TopicID: "topic_1", StoryID: "story_1", ExplorationID: "exp_1"},
		RevisionCardEntryPoint{TopicID: "topic_1", SubtopicID: 3},
	}
	for _, ep := range entryPoints {
		t.Run(string(ep.Name()), func(t *testing.T) {
			got, err := BuildEntryPoint(FlattenEntryPoint(ep))
			require.NoError(t, err)
			if diff := cmp.Diff(ep, got); diff != "" {
				t.Errorf("entry point mismatch (-want +got):\n%s", diff)
			}
			assert.NoError(t, got.Validate())
		})
	}
}

func TestBuildEntryPoint_Errors(t *testing.T) {
	topic := "topic_1"
	subtopic := 1

	tests := []struct {
		name   string
		fields EntryPointFields
		field  string
	}{
		{"unknown name", EntryPointFields{Name: "home_screen"}, "entry_point_name"},
		{"navigation drawer with topic", EntryPointFields{Name: EntryPointNavigationDrawer, TopicID: &topic}, "entry_point_topic_id"},
		{"crash with subtopic", EntryPointFields{Name: EntryPointCrash, SubtopicID: &subtopic}, "entry_point_subtopic_id"},
		{"lesson player with subtopic", EntryPointFields{Name: EntryPointLessonPlayer, TopicID: &topic, SubtopicID: &subtopic}, "entry_point_subtopic_id"},
		{"revision card with story", EntryPointFields{Name: EntryPointRevisionCard, TopicID: &topic, StoryID: &topic}, "entry_point_story_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildEntryPoint(tt.fields)
			require.Error(t, err)
			var appErr *contextutils.AppError
			require.True(t, contextutils.AsError(err, &appErr))
			assert.Equal(t, contextutils.ErrorCodeInvalidInput, appErr.Code)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestFlattenEntryPoint_OmitsUndeclaredFields(t *testing.T) {
	f := FlattenEntryPoint(RevisionCardEntryPoint{TopicID: "topic_1", SubtopicID: 2})
	assert.Equal(t, EntryPointRevisionCard, f.Name)
	require.NotNil(t, f.TopicID)
	require.NotNil(t, f.SubtopicID)
	assert.Nil(t, f.StoryID)
	assert.Nil(t, f.ExplorationID)

	f = FlattenEntryPoint(CrashEntryPoint{})
	assert.Equal(t, EntryPointFields{Name: EntryPointCrash}, f)
}
