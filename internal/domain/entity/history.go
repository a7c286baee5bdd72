package entity

import (
	"encoding/json"
	"time"
)

// HistoryCapacity максимальное число записей в истории
const HistoryCapacity = 24

// HistoryEntry запись истории: имя исходного файла и ссылка на результат
type HistoryEntry struct {
	ID        string    // уникальный идентификатор
	Name      string    // имя исходного изображения
	ResultURL string    // дескриптор артефакта результата
	CreatedAt time.Time // время создания
}

type historyEntryJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ResultURL string `json:"resultUrl"`
	CreatedAt int64  `json:"createdAt"`
}

// MarshalJSON хранит время в миллисекундах, как и прежний формат записи
func (e HistoryEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(historyEntryJSON{
		ID:        e.ID,
		Name:      e.Name,
		ResultURL: e.ResultURL,
		CreatedAt: e.CreatedAt.UnixMilli(),
	})
}

// UnmarshalJSON читает запись, сохранённую MarshalJSON
func (e *HistoryEntry) UnmarshalJSON(data []byte) error {
	var raw historyEntryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.ID = raw.ID
	e.Name = raw.Name
	e.ResultURL = raw.ResultURL
	e.CreatedAt = time.UnixMilli(raw.CreatedAt)
	return nil
}

// PrependHistory добавляет запись в начало и обрезает историю до ёмкости.
// Возвращает новую историю и вытесненные записи (от новых к старым).
func PrependHistory(history []HistoryEntry, entry HistoryEntry, capacity int) (kept, evicted []HistoryEntry) {
	next := make([]HistoryEntry, 0, len(history)+1)
	next = append(next, entry)
	next = append(next, history...)
	if capacity <= 0 || len(next) <= capacity {
		return next, nil
	}
	evicted = append(evicted, next[capacity:]...)
	return next[:capacity], evicted
}
