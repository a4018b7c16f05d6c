package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Reply - ответ на статью или вопрос.
type Reply struct {
	ID string
	// AuthorID - идентификатор автора (users.id)
	AuthorID string
	// Author - отображаемое имя автора (uniqueId)
	Author string
	// Text - текст ответа
	Text string
	// CreatedAt - время создания, nil если не задано или не распознано
	CreatedAt *time.Time
}

// Post - статья или вопрос с ответами.
// Replies всегда не nil и хранит ответы в порядке добавления.
type Post struct {
	ID        string
	Title     string
	Content   string
	AuthorID  string
	Author    string
	CreatedAt *time.Time
	Replies   []Reply
}

// HasReplies проверяет наличие хотя бы одного ответа.
func (p *Post) HasReplies() bool {
	return len(p.Replies) > 0
}

// replyJSON - формат ответа на диске. Поля author/text - устаревшие
// имена, которые встречаются в старых записях.
type replyJSON struct {
	ID             flexString `json:"id"`
	Content        string     `json:"content"`
	Text           string     `json:"text"`
	AuthorID       flexString `json:"authorId"`
	AuthorUniqueID string     `json:"authorUniqueId"`
	Author         string     `json:"author"`
	CreatedAt      string     `json:"createdAt"`
	Date           string     `json:"date"`
}

// postJSON - формат статьи/вопроса на диске.
type postJSON struct {
	ID             flexString  `json:"id"`
	Title          string      `json:"title"`
	Content        string      `json:"content"`
	AuthorID       flexString  `json:"authorId"`
	AuthorUniqueID string      `json:"authorUniqueId"`
	Author         string      `json:"author"`
	CreatedAt      string      `json:"createdAt"`
	Date           string      `json:"date"`
	Replies        []replyJSON `json:"replies"`
}

// UnmarshalJSON декодирует запись с учётом устаревших имён полей.
func (p *Post) UnmarshalJSON(data []byte) error {
	var raw postJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Post{
		ID:        string(raw.ID),
		Title:     raw.Title,
		Content:   raw.Content,
		AuthorID:  string(raw.AuthorID),
		Author:    firstNonEmpty(raw.AuthorUniqueID, raw.Author, string(raw.AuthorID)),
		CreatedAt: ParseTimestamp(firstNonEmpty(raw.CreatedAt, raw.Date)),
		Replies:   make([]Reply, 0, len(raw.Replies)),
	}

	for _, r := range raw.Replies {
		p.Replies = append(p.Replies, Reply{
			ID:        string(r.ID),
			AuthorID:  string(r.AuthorID),
			Author:    firstNonEmpty(r.AuthorUniqueID, r.Author, string(r.AuthorID)),
			Text:      firstNonEmpty(r.Content, r.Text),
			CreatedAt: ParseTimestamp(firstNonEmpty(r.CreatedAt, r.Date)),
		})
	}
	return nil
}

// User - зарегистрированный пользователь. Пароль не декодируется.
// Необязательные числовые поля - указатели: nil означает "не задано".
type User struct {
	ID               string
	UniqueID         string
	Email            string
	Phone            string
	UserType         string
	Name             string
	Age              *int64
	College          string
	ArticleCount     *int64
	ResponseCount    *int64
	RegistrationDate *time.Time
}

// Contact возвращает email, а если он не задан - телефон.
func (u *User) Contact() string {
	if u.Email != "" {
		return u.Email
	}
	return u.Phone
}

type userJSON struct {
	ID               flexString `json:"id"`
	UniqueID         flexString `json:"uniqueId"`
	Email            *string    `json:"email"`
	Phone            flexString `json:"phone"`
	UserType         string     `json:"userType"`
	Name             *string    `json:"name"`
	Age              flexNumber `json:"age"`
	College          *string    `json:"college"`
	ArticleCount     flexNumber `json:"articleCount"`
	ResponseCount    flexNumber `json:"responseCount"`
	RegistrationDate string     `json:"registrationDate"`
	CreatedAt        string     `json:"createdAt"`
}

// UnmarshalJSON декодирует пользователя; null и отсутствующие поля
// превращаются в пустые значения.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw userJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = User{
		ID:               string(raw.ID),
		UniqueID:         string(raw.UniqueID),
		Email:            deref(raw.Email),
		Phone:            string(raw.Phone),
		UserType:         raw.UserType,
		Name:             deref(raw.Name),
		Age:              raw.Age.value,
		College:          deref(raw.College),
		ArticleCount:     raw.ArticleCount.value,
		ResponseCount:    raw.ResponseCount.value,
		RegistrationDate: ParseTimestamp(firstNonEmpty(raw.RegistrationDate, raw.CreatedAt)),
	}
	return nil
}

// timestampLayouts - форматы дат, встречающиеся в данных.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp разбирает ISO-дату. Пустая или нераспознанная строка даёт nil.
func ParseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// flexString принимает строку, число или null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// flexNumber принимает число, числовую строку или null.
// Нечисловые значения считаются отсутствующими.
type flexNumber struct {
	value *int64
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	str := strings.TrimSpace(string(s))
	if str == "" {
		n.value = nil
		return nil
	}
	if v, err := strconv.ParseInt(str, 10, 64); err == nil {
		n.value = &v
		return nil
	}
	if f, err := strconv.ParseFloat(str, 64); err == nil {
		v := int64(f)
		n.value = &v
		return nil
	}
	n.value = nil
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
