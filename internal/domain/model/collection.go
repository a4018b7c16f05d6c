// Пакет model - доменные модели модуля экспорта: коллекции записей,
// форматы документов и сгенерированные артефакты.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Collection - экспортируемый набор записей.
type Collection string

const (
	// CollectionArticles - статьи пользователей
	CollectionArticles Collection = "articles"
	// CollectionQuestions - вопросы дня
	CollectionQuestions Collection = "questions"
	// CollectionUsers - зарегистрированные пользователи
	CollectionUsers Collection = "users"
)

// Collections возвращает все поддерживаемые коллекции в порядке объявления.
func Collections() []Collection {
	return []Collection{CollectionArticles, CollectionQuestions, CollectionUsers}
}

// ParseCollection проверяет идентификатор коллекции.
func ParseCollection(s string) (Collection, error) {
	switch c := Collection(s); c {
	case CollectionArticles, CollectionQuestions, CollectionUsers:
		return c, nil
	default:
		return "", fmt.Errorf("неизвестная коллекция %q", s)
	}
}

// ItemLabel возвращает подпись одного элемента для заголовков документа
// ("Article 1: ...").
func (c Collection) ItemLabel() string {
	switch c {
	case CollectionArticles:
		return "Article"
	case CollectionQuestions:
		return "Question"
	case CollectionUsers:
		return "User"
	}
	return "Record"
}

// DisplayName возвращает имя коллекции с заглавной буквы ("Articles").
func (c Collection) DisplayName() string {
	if c == "" {
		return ""
	}
	s := string(c)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Format - формат выходного документа.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatExcel Format = "excel"
	FormatWord  Format = "word"
)

// ParseFormat проверяет идентификатор формата.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatPDF, FormatExcel, FormatWord:
		return f, nil
	default:
		return "", fmt.Errorf("неизвестный формат %q", s)
	}
}

// Extension возвращает расширение файла без точки.
func (f Format) Extension() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatExcel:
		return "xlsx"
	case FormatWord:
		return "docx"
	}
	return ""
}

// DisplayName возвращает имя формата для сообщений ("PDF", "Excel", "Word").
func (f Format) DisplayName() string {
	switch f {
	case FormatPDF:
		return "PDF"
	case FormatExcel:
		return "Excel"
	case FormatWord:
		return "Word"
	}
	return string(f)
}

// ContentType возвращает MIME-тип документа.
func (f Format) ContentType() string {
	return contentTypes[f.Extension()]
}

// contentTypes - MIME-типы по расширению файла.
var contentTypes = map[string]string{
	"pdf":  "application/pdf",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// ContentTypeByName определяет MIME-тип артефакта по расширению имени.
// Для неизвестных расширений возвращает application/octet-stream.
func ContentTypeByName(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
