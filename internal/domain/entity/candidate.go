package entity

// Source канал, через который получено изображение
type Source string

const (
	SourcePicker Source = "picker" // Выбор файла
	SourceDrop   Source = "drop"   // Перетаскивание файла
	SourceCamera Source = "camera" // Кадр с камеры
)

// Candidate изображение, ожидающее отправки в сервис детекции
type Candidate struct {
	Name     string // имя файла, под которым изображение попадёт в историю
	MIMEType string // подсказка о типе, локально не проверяется
	Data     []byte // содержимое файла
	Source   Source // канал получения
}

// NewCandidate создаёт кандидата из произвольного канала
func NewCandidate(source Source, name, mimeType string, data []byte) *Candidate {
	return &Candidate{
		Name:     name,
		MIMEType: mimeType,
		Data:     data,
		Source:   source,
	}
}

// Size возвращает размер содержимого в байтах
func (c *Candidate) Size() int {
	return len(c.Data)
}
