// Package audit records stack operations (deploy, preview, destroy, config
// changes) in an append-only JSON Lines file so they can be listed later.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of audit event
type EventType string

const (
	// EventTypeDeployment is a stack update, preview or destroy
	EventTypeDeployment EventType = "deployment"
	// EventTypeConfiguration is a configuration change
	EventTypeConfiguration EventType = "configuration"
	// EventTypeInspection is a status or preflight run
	EventTypeInspection EventType = "inspection"
)

// EventAction represents the action taken
type EventAction string

const (
	ActionApply    EventAction = "apply"
	ActionPreview  EventAction = "preview"
	ActionDestroy  EventAction = "destroy"
	ActionGenerate EventAction = "generate"
	ActionValidate EventAction = "validate"
	ActionInspect  EventAction = "inspect"
)

// Event represents a single audit log entry
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Type      EventType   `json:"type"`
	Action    EventAction `json:"action"`
	// Stack is the Pulumi stack the action ran against
	Stack       string            `json:"stack"`
	Actor       string            `json:"actor"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
}

// Filter defines criteria for listing events. Zero values match everything.
type Filter struct {
	Stack      string
	Types      []EventType
	Actions    []EventAction
	FailedOnly bool
	Since      *time.Time
	// Limit keeps only the most recent N events
	Limit int
}

// FileLogger appends events to a JSON Lines file
type FileLogger struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// DefaultPath returns ~/.codeserver-stack/audit.log
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".codeserver-stack", "audit.log"), nil
}

// NewFileLogger creates a logger writing to path. The file is created on first write.
func NewFileLogger(path string) *FileLogger {
	return &FileLogger{path: path, now: time.Now}
}

// Path returns the backing file
func (l *FileLogger) Path() string {
	return l.path
}

// Log appends event, filling in ID, timestamp and actor when empty
func (l *FileLogger) Log(event *Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	if event.Actor == "" {
		event.Actor = CurrentActor()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// LogOperation records the outcome of an action against a stack
func (l *FileLogger) LogOperation(eventType EventType, action EventAction, stack string, duration time.Duration, opErr error, metadata map[string]string) (*Event, error) {
	event := &Event{
		Type:     eventType,
		Action:   action,
		Stack:    stack,
		Duration: duration,
		Success:  opErr == nil,
		Metadata: metadata,
	}
	if opErr != nil {
		event.Error = opErr.Error()
		event.Description = fmt.Sprintf("%s of %s failed", action, stack)
	} else {
		event.Description = fmt.Sprintf("%s of %s succeeded", action, stack)
	}
	return event, l.Log(event)
}

// List returns all events oldest first. A missing file yields no events.
func (l *FileLogger) List() ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	events := []Event{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("corrupt audit log at line %d: %w", lineNo, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// Query returns the events matching filter, oldest first
func (l *FileLogger) Query(filter Filter) ([]Event, error) {
	events, err := l.List()
	if err != nil {
		return nil, err
	}

	matched := []Event{}
	for _, event := range events {
		if filter.matches(event) {
			matched = append(matched, event)
		}
	}

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[len(matched)-filter.Limit:]
	}
	return matched, nil
}

func (f Filter) matches(event Event) bool {
	if f.Stack != "" && event.Stack != f.Stack {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, event.Type) {
		return false
	}
	if len(f.Actions) > 0 && !contains(f.Actions, event.Action) {
		return false
	}
	if f.FailedOnly && event.Success {
		return false
	}
	if f.Since != nil && event.Timestamp.Before(*f.Since) {
		return false
	}
	return true
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

// CurrentActor returns the local user name, or "unknown"
func CurrentActor() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
