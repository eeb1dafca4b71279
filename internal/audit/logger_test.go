package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *FileLogger {
	t.Helper()
	return NewFileLogger(filepath.Join(t.TempDir(), "nested", "audit.log"))
}

func TestFileLogger_Log(t *testing.T) {
	logger := newTestLogger(t)

	event := &Event{
		Type:    EventTypeDeployment,
		Action:  ActionApply,
		Stack:   "dev",
		Success: true,
	}
	require.NoError(t, logger.Log(event))

	_, err := uuid.Parse(event.ID)
	assert.NoError(t, err)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotEmpty(t, event.Actor)

	info, err := os.Stat(logger.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileLogger_Log_NilEvent(t *testing.T) {
	err := newTestLogger(t).Log(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}

func TestFileLogger_Log_PreservesExistingFields(t *testing.T) {
	logger := newTestLogger(t)
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, logger.Log(&Event{ID: "custom-id", Timestamp: ts, Actor: "ci", Stack: "dev"}))

	events, err := logger.List()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "custom-id", events[0].ID)
	assert.Equal(t, "ci", events[0].Actor)
	assert.True(t, ts.Equal(events[0].Timestamp))
}

func TestFileLogger_LogOperation(t *testing.T) {
	logger := newTestLogger(t)

	ok, err := logger.LogOperation(EventTypeDeployment, ActionApply, "dev", 2*time.Minute, nil, map[string]string{"changes": "17"})
	require.NoError(t, err)
	assert.True(t, ok.Success)
	assert.Contains(t, ok.Description, "succeeded")

	failed, err := logger.LogOperation(EventTypeDeployment, ActionDestroy, "dev", time.Second, errors.New("boom"), nil)
	require.NoError(t, err)
	assert.False(t, failed.Success)
	assert.Equal(t, "boom", failed.Error)

	events, err := logger.List()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "17", events[0].Metadata["changes"])
	assert.Equal(t, 2*time.Minute, events[0].Duration)
}

func TestFileLogger_List_MissingFile(t *testing.T) {
	events, err := newTestLogger(t).List()
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFileLogger_List_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, os.WriteFile(path, []byte("{\"id\":\"a\"}\nnot json\n"), 0600))

	_, err := NewFileLogger(path).List()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestFileLogger_List_SortsByTimestamp(t *testing.T) {
	logger := newTestLogger(t)
	base := time.Now()

	require.NoError(t, logger.Log(&Event{ID: "late", Timestamp: base.Add(time.Hour)}))
	require.NoError(t, logger.Log(&Event{ID: "early", Timestamp: base}))

	events, err := logger.List()
	require.NoError(t, err)
	assert.Equal(t, "early", events[0].ID)
	assert.Equal(t, "late", events[1].ID)
}

func TestFileLogger_Query(t *testing.T) {
	logger := newTestLogger(t)
	base := time.Now().Add(-time.Hour)

	seed := []*Event{
		{ID: "1", Timestamp: base, Type: EventTypeDeployment, Action: ActionApply, Stack: "dev", Success: true},
		{ID: "2", Timestamp: base.Add(time.Minute), Type: EventTypeDeployment, Action: ActionDestroy, Stack: "prod", Success: false},
		{ID: "3", Timestamp: base.Add(2 * time.Minute), Type: EventTypeConfiguration, Action: ActionValidate, Stack: "dev", Success: true},
		{ID: "4", Timestamp: base.Add(3 * time.Minute), Type: EventTypeDeployment, Action: ActionPreview, Stack: "dev", Success: false},
	}
	for _, e := range seed {
		require.NoError(t, logger.Log(e))
	}
	since := base.Add(90 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		ids    []string
	}{
		{"all", Filter{}, []string{"1", "2", "3", "4"}},
		{"by stack", Filter{Stack: "dev"}, []string{"1", "3", "4"}},
		{"by type", Filter{Types: []EventType{EventTypeConfiguration}}, []string{"3"}},
		{"by action", Filter{Actions: []EventAction{ActionApply, ActionDestroy}}, []string{"1", "2"}},
		{"failed only", Filter{FailedOnly: true}, []string{"2", "4"}},
		{"since", Filter{Since: &since}, []string{"3", "4"}},
		{"limit keeps newest", Filter{Limit: 2}, []string{"3", "4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := logger.Query(tt.filter)
			require.NoError(t, err)

			ids := []string{}
			for _, e := range events {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".codeserver-stack", "audit.log"), filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path)))
}
