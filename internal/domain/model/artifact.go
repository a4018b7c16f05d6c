package model

import (
	"fmt"
	"regexp"
	"time"
)

// Artifact - сгенерированный файл экспорта в хранилище артефактов.
// Живёт до явного удаления, срока хранения нет.
type Artifact struct {
	// Name - имя файла: {collection}_export_{epoch-millis}.{ext}
	Name string `json:"name"`
	// Size - размер файла в байтах
	Size int64 `json:"size"`
	// CreatedAt - время создания (birth time, если ФС его отдаёт, иначе mtime)
	CreatedAt time.Time `json:"created"`
	// ModifiedAt - время последнего изменения
	ModifiedAt time.Time `json:"modified"`
}

// exportNamePattern - формат имени артефакта, созданного модулем.
var exportNamePattern = regexp.MustCompile(`^(articles|questions|users)_export_[0-9]+\.(pdf|xlsx|docx)$`)

// ExportName формирует имя артефакта из коллекции, формата и времени.
func ExportName(c Collection, f Format, now time.Time) string {
	return fmt.Sprintf("%s_export_%d.%s", c, now.UnixMilli(), f.Extension())
}

// IsExportName проверяет, что имя соответствует формату артефакта экспорта.
func IsExportName(name string) bool {
	return exportNamePattern.MatchString(name)
}
