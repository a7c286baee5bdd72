package entity

// Theme сохранённая тема интерфейса
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme возвращает тёмную тему только для значения "dark"
func ParseTheme(s string) Theme {
	if s == string(ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}

// IsDark сообщает, включена ли тёмная тема
func (t Theme) IsDark() bool {
	return t == ThemeDark
}

// Toggle возвращает противоположную тему
func (t Theme) Toggle() Theme {
	if t.IsDark() {
		return ThemeLight
	}
	return ThemeDark
}
