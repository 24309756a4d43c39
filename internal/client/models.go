package client

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Note is a note as returned by the API
type Note struct {
	ID         int64        `json:"id"`
	Title      string       `json:"title"`
	Content    string       `json:"content"`
	Category   CategoryName `json:"category"`
	Tags       []Tag        `json:"tags"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	User       int64        `json:"user"`
	IsFavorite bool         `json:"is_favorite"`
	Slug       string       `json:"slug"`
}

// NoteHistory is one historical revision of a note
type NoteHistory struct {
	HistoryID           int64     `json:"history_id"`
	Title               string    `json:"title"`
	Content             string    `json:"content"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	IsFavorite          bool      `json:"is_favorite"`
	HistoryDate         time.Time `json:"history_date"`
	HistoryChangeReason *string   `json:"history_change_reason"`
	HistoryType         string    `json:"history_type"`
	HistoryUserID       int64     `json:"history_user_id"`
}

// ChangeType describes the revision kind ("+" created, "~" changed, "-" deleted)
func (h *NoteHistory) ChangeType() string {
	switch h.HistoryType {
	case "+":
		return "created"
	case "~":
		return "changed"
	case "-":
		return "deleted"
	default:
		return h.HistoryType
	}
}

// CategoryName is the category of a note. The server renders it either as
// the category name or as its numeric id.
type CategoryName string

// UnmarshalJSON accepts a string, a number or null
func (c *CategoryName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CategoryName(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = CategoryName(n.String())
	return nil
}

// ID returns the category as a numeric id when the server sent one
func (c CategoryName) ID() (int64, bool) {
	id, err := strconv.ParseInt(string(c), 10, 64)
	return id, err == nil
}

// Category groups notes
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag labels notes
type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// User is the authenticated account
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// NoteInput is the full body for creating or replacing a note
type NoteInput struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Category   int64   `json:"category"`
	Tags       []int64 `json:"tags"`
	IsFavorite bool    `json:"is_favorite"`
}

// NotePatch carries only the note fields to change
type NotePatch struct {
	Title      *string  `json:"title,omitempty"`
	Content    *string  `json:"content,omitempty"`
	Category   *int64   `json:"category,omitempty"`
	Tags       *[]int64 `json:"tags,omitempty"`
	IsFavorite *bool    `json:"is_favorite,omitempty"`
}

// NameInput is the body for creating, replacing or patching a category or tag
type NameInput struct {
	Name string `json:"name"`
}
