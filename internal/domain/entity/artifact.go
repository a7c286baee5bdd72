package entity

import "strings"

// HandlePrefix префикс локальных дескрипторов артефактов
const HandlePrefix = "blob:"

// Artifact размеченное изображение, которое вернул сервис детекции
type Artifact struct {
	Handle   string // локальный адрес вида blob:<uuid>
	MIMEType string // тип содержимого из ответа сервиса
	Size     int    // размер в байтах
}

// IsHandle проверяет, похожа ли строка на дескриптор артефакта
func IsHandle(s string) bool {
	return strings.HasPrefix(s, HandlePrefix) && len(s) > len(HandlePrefix)
}

// CameraState состояние камеры
type CameraState string

const (
	CameraIdle   CameraState = "idle"   // Камера выключена
	CameraActive CameraState = "active" // Идёт превью
)
