package graph

import (
	"context"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"net/url"
	"strings"
)

// RecentMails lists the newest inbox messages.
func (c *Client) RecentMails(ctx context.Context, token string, limit int) ([]string, error) {
	query := top(limit)
	query.Set("$orderby", "receivedDateTime desc")
	result, err := c.get(ctx, token, "/me/mailFolders/inbox/messages", query)
	if err != nil {
		return nil, err
	}

	lines := []string{}
	result.Get("value").ForEach(func(_, mail gjson.Result) bool {
		subject := orDefault(mail.Get("subject"), "Ohne Betreff")
		from := orDefault(mail.Get("from.emailAddress.address"), "Unbekannt")
		lines = append(lines, fmt.Sprintf("📧 %s (von %s)", subject, from))
		return true
	})
	return lines, nil
}

// UpcomingEvents lists calendar events ordered by start.
func (c *Client) UpcomingEvents(ctx context.Context, token string, limit int) ([]string, error) {
	query := top(limit)
	query.Set("$orderby", "start/dateTime asc")
	result, err := c.get(ctx, token, "/me/events", query)
	if err != nil {
		return nil, err
	}

	lines := []string{}
	result.Get("value").ForEach(func(_, event gjson.Result) bool {
		subject := orDefault(event.Get("subject"), "Ohne Titel")
		start := formatDateTime(event.Get("start.dateTime").String())
		if start == "" {
			lines = append(lines, fmt.Sprintf("📅 %s", subject))
		} else {
			lines = append(lines, fmt.Sprintf("📅 %s (%s)", subject, start))
		}
		return true
	})
	return lines, nil
}

// formatDateTime shortens Graph's "2024-05-01T09:00:00.0000000" to "2024-05-01 09:00".
func formatDateTime(s string) string {
	if len(s) >= 16 && s[10] == 'T' {
		return s[:10] + " " + s[11:16]
	}
	return s
}

func (c *Client) Contacts(ctx context.Context, token string, limit int) ([]string, error) {
	result, err := c.get(ctx, token, "/me/contacts", top(limit))
	if err != nil {
		return nil, err
	}

	lines := []string{}
	result.Get("value").ForEach(func(_, contact gjson.Result) bool {
		line := "👤 " + orDefault(contact.Get("displayName"), "Unbekannt")
		if email := contact.Get("emailAddresses.0.address").String(); email != "" {
			line += " <" + email + ">"
		}
		lines = append(lines, line)
		return true
	})
	return lines, nil
}

// Tasks walks every To Do list, a list whose tasks cannot be read is skipped.
func (c *Client) Tasks(ctx context.Context, token string, limit int) ([]string, error) {
	lists, err := c.get(ctx, token, "/me/todo/lists", nil)
	if err != nil {
		return nil, err
	}

	lines := []string{}
	for _, list := range lists.Get("value").Array() {
		id := list.Get("id").String()
		name := orDefault(list.Get("displayName"), "Ohne Listenname")
		if id == "" {
			continue
		}
		tasks, err := c.get(ctx, token, "/me/todo/lists/"+url.PathEscape(id)+"/tasks", top(limit))
		if err != nil {
			log.Warn().Err(err).Str("list", name).Msg("skipping task list")
			continue
		}
		tasks.Get("value").ForEach(func(_, task gjson.Result) bool {
			title := strings.TrimSpace(task.Get("title").String())
			if title == "" {
				title = "Ohne Titel"
			}
			lines = append(lines, fmt.Sprintf("📝 %s: %s", name, title))
			return true
		})
	}
	return lines, nil
}
