package entity

import (
	"fmt"
	"math"
	"strconv"
)

// Threshold порог уверенности, который передаётся сервису детекции.
// Локально значение никак не используется.
type Threshold float64

const (
	ThresholdMin     Threshold = 0.1
	ThresholdMax     Threshold = 0.9
	ThresholdStep    Threshold = 0.05
	ThresholdDefault Threshold = 0.25
)

// NewThreshold приводит значение к диапазону слайдера: зажимает в [0.1, 0.9]
// и округляет до шага 0.05.
func NewThreshold(v float64) Threshold {
	if math.IsNaN(v) {
		return ThresholdDefault
	}
	if v < float64(ThresholdMin) {
		v = float64(ThresholdMin)
	}
	if v > float64(ThresholdMax) {
		v = float64(ThresholdMax)
	}
	steps := math.Round((v - float64(ThresholdMin)) / float64(ThresholdStep))
	snapped := float64(ThresholdMin) + steps*float64(ThresholdStep)
	// убираем хвосты вида 0.30000000000000004
	return Threshold(math.Round(snapped*100) / 100)
}

// ParseThreshold разбирает сохранённое или введённое значение
func ParseThreshold(s string) (Threshold, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ThresholdDefault, fmt.Errorf("parse threshold %q: %w", s, err)
	}
	return NewThreshold(v), nil
}

// String возвращает значение в виде, в котором оно уходит в поле conf
func (t Threshold) String() string {
	return strconv.FormatFloat(float64(t), 'f', -1, 64)
}

// Percent возвращает порог в процентах для отображения
func (t Threshold) Percent() string {
	return fmt.Sprintf("%.0f%%", float64(t)*100)
}
