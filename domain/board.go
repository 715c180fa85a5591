package domain

// Board is the in-memory state of one user's task board. It is not safe for
// concurrent use; session.Controller serialises access to it.
type Board struct {
	todo       TaskList
	inProgress TaskList
	completed  TaskList
	username   string
	isLight    bool
}

// NewBoard returns an empty board with default profile fields.
func NewBoard() *Board {
	return &Board{}
}

// Snapshot is an immutable copy of a board handed to collaborators.
type Snapshot struct {
	Todo       TaskList
	InProgress TaskList
	Completed  TaskList
	Username   string
	IsLight    bool
}

// Theme returns the presentation value for the snapshot's theme flag.
func (s Snapshot) Theme() Theme { return ThemeFor(s.IsLight) }

// List returns the snapshot copy of the named list.
func (s Snapshot) List(id ListID) TaskList {
	switch id {
	case Todo:
		return s.Todo
	case InProgress:
		return s.InProgress
	case Completed:
		return s.Completed
	}
	return nil
}

// Document converts the snapshot into its persisted form.
func (s Snapshot) Document() Document {
	return NewDocument(s.Username, s.Todo, s.InProgress, s.Completed, s.IsLight)
}

// Snapshot copies the current state.
func (b *Board) Snapshot() Snapshot {
	return Snapshot{
		Todo:       b.todo.Clone(),
		InProgress: b.inProgress.Clone(),
		Completed:  b.completed.Clone(),
		Username:   b.username,
		IsLight:    b.isLight,
	}
}

// AddTask appends text to the to-do list. The stored task is text with
// surrounding whitespace trimmed, and the duplicate check uses that trimmed
// form: with "a" in the list, " a" is rejected. Blank text is rejected too.
// The other lists are not consulted, so the same text may also sit in
// progress or completed.
func (b *Board) AddTask(text string) bool {
	t, ok := NormalizeTask(text)
	if !ok || b.todo.Contains(t) {
		return false
	}
	b.todo = append(b.todo, t)
	return true
}

// MoveTask removes every occurrence of text from all lists and appends it once
// to dest. Occurrences in several lists collapse into a single entry.
func (b *Board) MoveTask(text string, dest ListID) bool {
	target := b.list(dest)
	if target == nil || text == "" {
		return false
	}
	if b.settledIn(text, dest) {
		return false
	}
	b.todo = b.todo.Without(text)
	b.inProgress = b.inProgress.Without(text)
	b.completed = b.completed.Without(text)
	*target = append(*target, text)
	return true
}

// settledIn reports whether text already occurs exactly once overall, as the
// last entry of dest, in which case a move would not change anything.
func (b *Board) settledIn(text string, dest ListID) bool {
	last, ok := b.list(dest).Last()
	if !ok || last != text {
		return false
	}
	return b.todo.Count(text)+b.inProgress.Count(text)+b.completed.Count(text) == 1
}

// DeleteTask removes every occurrence of text from all lists.
func (b *Board) DeleteTask(text string) bool {
	n := len(b.todo) + len(b.inProgress) + len(b.completed)
	b.todo = b.todo.Without(text)
	b.inProgress = b.inProgress.Without(text)
	b.completed = b.completed.Without(text)
	return n != len(b.todo)+len(b.inProgress)+len(b.completed)
}

// ToggleTheme flips the theme flag and returns the resulting theme.
func (b *Board) ToggleTheme() Theme {
	b.isLight = !b.isLight
	return ThemeFor(b.isLight)
}

// SetUsername replaces the display name.
func (b *Board) SetUsername(name string) bool {
	if b.username == name {
		return false
	}
	b.username = name
	return true
}

// Username returns the display name.
func (b *Board) Username() string { return b.username }

// Reset restores every field to its default.
func (b *Board) Reset() {
	*b = Board{}
}

// Restore replaces the board with the content of a loaded document. Missing
// document fields have already decoded to their defaults.
func (b *Board) Restore(doc Document) {
	*b = Board{
		todo:       TaskList(doc.Tasks).Clone(),
		inProgress: TaskList(doc.InProgressTasks).Clone(),
		completed:  TaskList(doc.CompletedTasks).Clone(),
		username:   doc.Username,
		isLight:    doc.IsLight,
	}
}

func (b *Board) list(id ListID) *TaskList {
	switch id {
	case Todo:
		return &b.todo
	case InProgress:
		return &b.inProgress
	case Completed:
		return &b.completed
	}
	return nil
}
