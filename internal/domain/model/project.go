// Пакет model — доменные модели TK Labels Module.
// ProjectRecord — отфильтрованные данные проекта Local Contexts Hub,
// которые кэшируются и отдаются потребителю.
package model

import (
	"encoding/json"
	"maps"
)

// Параметры отображения TK Labels (пользовательское предпочтение).
const (
	// DisplayBoth — показывать название и текст метки (по умолчанию).
	DisplayBoth = "both"
	// DisplayNameOnly — показывать только название метки, без label_text.
	DisplayNameOnly = "name_only"
)

// Label — TK Label из ответа Hub. Непрозрачный JSON-объект,
// минимально содержит label_text.
type Label map[string]any

// ProjectRecord — проект Local Contexts Hub, отфильтрованный до фиксированного набора полей.
// Отсутствующие скалярные поля — nil (null в JSON), отсутствующие метки — пустой срез.
type ProjectRecord struct {
	// UniqueID — идентификатор проекта в Hub
	UniqueID *string `json:"unique_id"`
	// Title — название проекта
	Title *string `json:"title"`
	// DateAdded — дата добавления (строка в формате Hub)
	DateAdded *string `json:"date_added"`
	// DateModified — дата последнего изменения
	DateModified *string `json:"date_modified"`
	// TKLabels — TK Labels проекта
	TKLabels []Label `json:"tk_labels"`
}

// EmptyProjectRecord возвращает каноническую пустую запись:
// все скалярные поля nil, tk_labels — пустой (не nil) срез.
func EmptyProjectRecord() ProjectRecord {
	return ProjectRecord{TKLabels: []Label{}}
}

// IsEmpty возвращает true, если все скалярные поля nil и меток нет.
// Пустые записи никогда не кэшируются.
func (p ProjectRecord) IsEmpty() bool {
	return p.UniqueID == nil &&
		p.Title == nil &&
		p.DateAdded == nil &&
		p.DateModified == nil &&
		len(p.TKLabels) == 0
}

// MarshalJSON гарантирует "tk_labels": [] вместо null.
func (p ProjectRecord) MarshalJSON() ([]byte, error) {
	type alias ProjectRecord
	if p.TKLabels == nil {
		p.TKLabels = []Label{}
	}
	return json.Marshal(alias(p))
}

// ApplyDisplayOption применяет предпочтение отображения к записи.
// Для DisplayNameOnly возвращается копия, в которой у каждой метки удалён label_text;
// исходная запись (например, из кэша) не изменяется.
func ApplyDisplayOption(p ProjectRecord, option string) ProjectRecord {
	if option != DisplayNameOnly || len(p.TKLabels) == 0 {
		return p
	}

	labels := make([]Label, 0, len(p.TKLabels))
	for _, l := range p.TKLabels {
		cp := maps.Clone(l)
		delete(cp, "label_text")
		labels = append(labels, cp)
	}
	p.TKLabels = labels
	return p
}

// ValidDisplayOption проверяет значение параметра отображения.
// Пустая строка допустима и означает DisplayBoth.
func ValidDisplayOption(option string) bool {
	switch option {
	case "", DisplayBoth, DisplayNameOnly:
		return true
	default:
		return false
	}
}
