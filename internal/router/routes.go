package router

import (
	"context"
	"github.com/petrzlen/butler-golang/pkg/agent"
	"github.com/petrzlen/butler-golang/pkg/graph"
	"github.com/petrzlen/butler-golang/pkg/models"
	"strings"
	"unicode"
)

var (
	MailKeywords     = []string{"mail", "posteingang", "inbox"}
	CalendarKeywords = []string{"termin", "kalender", "calendar"}
	ContactKeywords  = []string{"kontakt", "contact", "adressbuch"}
	TaskKeywords     = []string{"aufgabe", "todo", "to-do", "task"}
	NoteKeywords     = []string{"notiz", "notiere", "notion", "note"}

	// NoteCreateKeywords switch the notes route from listing to creating, they match whole words only.
	NoteCreateKeywords = []string{"erstelle", "neue", "notiere", "anlegen", "create", "add"}
)

const (
	NoMails    = "Keine Mails gefunden."
	NoEvents   = "Keine Termine gefunden."
	NoContacts = "Keine Kontakte gefunden."
	NoTasks    = "Keine Aufgaben gefunden."
	NoNotes    = "Keine Notizen gefunden."

	NoteCreatedPrefix = "🗒️ Notiz erstellt: "
)

// GraphReader is implemented by *graph.Client.
type GraphReader interface {
	RecentMails(ctx context.Context, token string, limit int) ([]string, error)
	UpcomingEvents(ctx context.Context, token string, limit int) ([]string, error)
	Contacts(ctx context.Context, token string, limit int) ([]string, error)
	Tasks(ctx context.Context, token string, limit int) ([]string, error)
}

// NotesStore is implemented by *notion.Client.
type NotesStore interface {
	Notes(ctx context.Context, limit int) ([]string, error)
	CreateNote(ctx context.Context, title string) (string, error)
}

type Deps struct {
	Tokens graph.TokenProvider
	Graph  GraphReader
	Notes  NotesStore
	Agent  agent.ChatAgent

	// Limit is the number of items asked from every vendor.
	Limit int
}

// NewDefault wires the butler's keyword groups in their fixed priority.
func NewDefault(d Deps) *Router {
	return New(DefaultRoutes(d), d.completion)
}

func DefaultRoutes(d Deps) []Route {
	return []Route{
		{Name: "mail", Keywords: MailKeywords, Handler: d.graphList(d.Graph.RecentMails, NoMails)},
		{Name: "calendar", Keywords: CalendarKeywords, Handler: d.graphList(d.Graph.UpcomingEvents, NoEvents)},
		{Name: "contacts", Keywords: ContactKeywords, Handler: d.graphList(d.Graph.Contacts, NoContacts)},
		{Name: "tasks", Keywords: TaskKeywords, Handler: d.graphList(d.Graph.Tasks, NoTasks)},
		{Name: "notes", Keywords: NoteKeywords, Handler: d.notes},
	}
}

func joinOrEmpty(lines []string, empty string) string {
	if len(lines) == 0 {
		return empty
	}
	return strings.Join(lines, "\n")
}

func (d Deps) graphList(fetch func(ctx context.Context, token string, limit int) ([]string, error), empty string) Handler {
	return func(ctx context.Context, _ string) (string, error) {
		token, err := d.Tokens.Token(ctx)
		if err != nil {
			return "", err
		}
		lines, err := fetch(ctx, token, d.Limit)
		if err != nil {
			return "", err
		}
		return joinOrEmpty(lines, empty), nil
	}
}

func (d Deps) notes(ctx context.Context, text string) (string, error) {
	lower := strings.ToLower(text)
	if title := noteTitle(text); title != "" && containsWord(lower, NoteCreateKeywords) {
		stored, err := d.Notes.CreateNote(ctx, title)
		if err != nil {
			return "", err
		}
		return NoteCreatedPrefix + stored, nil
	}

	lines, err := d.Notes.Notes(ctx, d.Limit)
	if err != nil {
		return "", err
	}
	return joinOrEmpty(lines, NoNotes), nil
}

func (d Deps) completion(ctx context.Context, text string) (string, error) {
	conversation := models.NewConversationSimple(text)
	return d.Agent.RunPrompt(ctx, agent.FastAndCheap, &conversation)
}

// containsWord matches whole words only, "neuen" does not match "neue".
func containsWord(lowerText string, keywords []string) bool {
	words := strings.FieldsFunc(lowerText, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, word := range words {
		for _, keyword := range keywords {
			if word == keyword {
				return true
			}
		}
	}
	return false
}

// noteTitle is the text after the first ":", otherwise the text after the notes keyword.
func noteTitle(text string) string {
	if i := strings.Index(text, ":"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}

	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		// Lowercasing changed byte offsets, indexes into lower do not apply to text.
		text = lower
	}
	keyword, ok := Route{Keywords: NoteKeywords}.matchedKeyword(lower)
	if !ok {
		return strings.TrimSpace(text)
	}
	i := strings.Index(lower, keyword) + len(keyword)
	// "Notizen Einkauf" yields "Einkauf".
	return strings.TrimSpace(strings.TrimLeftFunc(text[i:], unicode.IsLetter))
}
