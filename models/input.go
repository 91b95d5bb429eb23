package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"cloud.google.com/go/civil"
)

const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 2000
)

// ValidationError carries per-field messages for input rejected before any remote call.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Field is one entry of a partial update. An unset Field leaves the stored
// value alone; a set Field with a nil Value clears it.
type Field[T any] struct {
	Set   bool
	Value *T
}

// Set returns a Field that writes v.
func Set[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Clear returns a Field that writes null.
func Clear[T any]() Field[T] {
	return Field[T]{Set: true}
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.Value)
}

// value returns the patch representation: the value itself or nil for a clear.
func (f Field[T]) value() any {
	if f.Value == nil {
		return nil
	}
	return *f.Value
}

// NullIfBlank trims s and maps the empty result to nil.
func NullIfBlank(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func blankField(f Field[string]) Field[string] {
	if !f.Set {
		return f
	}
	return Field[string]{Set: true, Value: NullIfBlank(f.Value)}
}

func checkTitle(v *ValidationError, field, label, title string) {
	switch {
	case title == "":
		v.add(field, label+" is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		v.add(field, fmt.Sprintf("%s must be at most %d characters", label, MaxTitleLength))
	}
}

func checkDescription(v *ValidationError, description *string) {
	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		v.add("description", fmt.Sprintf("Description must be at most %d characters", MaxDescriptionLength))
	}
}

func checkDate(v *ValidationError, field string, d *civil.Date) {
	if d != nil && !d.IsValid() {
		v.add(field, "Invalid date")
	}
}

// TaskInput is the create shape of a Task. Owner fields are never part of it.
type TaskInput struct {
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	DueDate     *civil.Date  `json:"due_date"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	GoalID      *string      `json:"goal_id"`
}

// Normalize trims text, maps blank optionals to nil and fills the default
// priority and status.
func (in TaskInput) Normalize() TaskInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = NullIfBlank(in.Description)
	in.GoalID = NullIfBlank(in.GoalID)
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	return in
}

// Validate expects a normalized input.
func (in TaskInput) Validate() error {
	v := &ValidationError{}
	checkTitle(v, "title", "Title", in.Title)
	checkDescription(v, in.Description)
	checkDate(v, "due_date", in.DueDate)
	if !in.Priority.Valid() {
		v.add("priority", "Priority must be one of low, medium, high")
	}
	if !in.Status.Valid() {
		v.add("status", "Status must be one of todo, in_progress, completed")
	}
	return v.orNil()
}

// TaskPatch is a partial Task update.
type TaskPatch struct {
	Title       Field[string]       `json:"title"`
	Description Field[string]       `json:"description"`
	DueDate     Field[civil.Date]   `json:"due_date"`
	Priority    Field[TaskPriority] `json:"priority"`
	Status      Field[TaskStatus]   `json:"status"`
	GoalID      Field[string]       `json:"goal_id"`
}

func (p TaskPatch) Normalize() TaskPatch {
	if p.Title.Set && p.Title.Value != nil {
		t := strings.TrimSpace(*p.Title.Value)
		p.Title.Value = &t
	}
	p.Description = blankField(p.Description)
	p.GoalID = blankField(p.GoalID)
	return p
}

// Validate checks only the fields present in the patch.
func (p TaskPatch) Validate() error {
	v := &ValidationError{}
	if p.Title.Set {
		title := ""
		if p.Title.Value != nil {
			title = *p.Title.Value
		}
		checkTitle(v, "title", "Title", title)
	}
	checkDescription(v, p.Description.Value)
	checkDate(v, "due_date", p.DueDate.Value)
	if p.Priority.Set && (p.Priority.Value == nil || !p.Priority.Value.Valid()) {
		v.add("priority", "Priority must be one of low, medium, high")
	}
	if p.Status.Set && (p.Status.Value == nil || !p.Status.Value.Valid()) {
		v.add("status", "Status must be one of todo, in_progress, completed")
	}
	return v.orNil()
}

// Changes returns the set fields keyed by column name.
func (p TaskPatch) Changes() map[string]any {
	out := make(map[string]any)
	put(out, "title", p.Title)
	put(out, "description", p.Description)
	put(out, "due_date", p.DueDate)
	put(out, "priority", p.Priority)
	put(out, "status", p.Status)
	put(out, "goal_id", p.GoalID)
	return out
}

// GoalInput is the create shape of a Goal.
type GoalInput struct {
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	StartDate   *civil.Date `json:"start_date"`
	EndDate     *civil.Date `json:"end_date"`
}

func (in GoalInput) Normalize() GoalInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = NullIfBlank(in.Description)
	return in
}

func (in GoalInput) Validate() error {
	v := &ValidationError{}
	checkTitle(v, "name", "Name", in.Name)
	checkDescription(v, in.Description)
	checkDate(v, "start_date", in.StartDate)
	checkDate(v, "end_date", in.EndDate)
	checkRange(v, in.StartDate, in.EndDate)
	return v.orNil()
}

// GoalPatch is a partial Goal update.
type GoalPatch struct {
	Name        Field[string]     `json:"name"`
	Description Field[string]     `json:"description"`
	StartDate   Field[civil.Date] `json:"start_date"`
	EndDate     Field[civil.Date] `json:"end_date"`
}

func (p GoalPatch) Normalize() GoalPatch {
	if p.Name.Set && p.Name.Value != nil {
		n := strings.TrimSpace(*p.Name.Value)
		p.Name.Value = &n
	}
	p.Description = blankField(p.Description)
	return p
}

// Validate checks the fields present. The date range can only be checked
// here when both ends are in the patch; the store enforces it otherwise.
func (p GoalPatch) Validate() error {
	v := &ValidationError{}
	if p.Name.Set {
		name := ""
		if p.Name.Value != nil {
			name = *p.Name.Value
		}
		checkTitle(v, "name", "Name", name)
	}
	checkDescription(v, p.Description.Value)
	checkDate(v, "start_date", p.StartDate.Value)
	checkDate(v, "end_date", p.EndDate.Value)
	checkRange(v, p.StartDate.Value, p.EndDate.Value)
	return v.orNil()
}

func (p GoalPatch) Changes() map[string]any {
	out := make(map[string]any)
	put(out, "name", p.Name)
	put(out, "description", p.Description)
	put(out, "start_date", p.StartDate)
	put(out, "end_date", p.EndDate)
	return out
}

func checkRange(v *ValidationError, start, end *civil.Date) {
	if start != nil && end != nil && end.Before(*start) {
		v.add("end_date", "End date must be after start date")
	}
}

type patchField interface {
	isSet() bool
	value() any
}

func (f Field[T]) isSet() bool { return f.Set }

func put(out map[string]any, key string, f patchField) {
	if f.isSet() {
		out[key] = f.value()
	}
}
