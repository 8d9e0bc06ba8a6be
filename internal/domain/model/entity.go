package model

import "strings"

// EntityTypeNode — тип сущности, поддерживаемый ProjectDataService.
const EntityTypeNode = "node"

// Entity — контракт чтения сущности CMS.
// Сервис использует только проверку наличия поля и чтение его значения.
type Entity interface {
	EntityID() string
	EntityType() string
	Bundle() string
	HasField(name string) bool
	// FieldValue возвращает значение поля и false, если поле отсутствует.
	FieldValue(name string) (string, bool)
}

// Node — сущность CMS, загруженная из content_entities / content_entity_fields.
type Node struct {
	// ID — идентификатор сущности
	ID string
	// Type — тип сущности (node, taxonomy_term, ...)
	Type string
	// BundleName — bundle (тип материала)
	BundleName string
	// Fields — значения полей по машинному имени
	Fields map[string]string
}

// EntityID возвращает идентификатор сущности.
func (n *Node) EntityID() string { return n.ID }

// EntityType возвращает тип сущности.
func (n *Node) EntityType() string { return n.Type }

// Bundle возвращает bundle сущности.
func (n *Node) Bundle() string { return n.BundleName }

// HasField проверяет наличие поля.
func (n *Node) HasField(name string) bool {
	_, ok := n.Fields[name]
	return ok
}

// FieldValue возвращает значение поля без окружающих пробелов.
func (n *Node) FieldValue(name string) (string, bool) {
	v, ok := n.Fields[name]
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Settings — параметры подключения к Local Contexts Hub.
// Читаются в момент вызова и не изменяются сервисом.
type Settings struct {
	// APIURL — базовый URL API Hub (например, https://sandbox.localcontextshub.org/api/v2)
	APIURL string
	// APIKey — ключ API (заголовок X-Api-Key)
	APIKey string
	// FieldIdentifier — машинное имя поля сущности с идентификатором проекта
	FieldIdentifier string
}
