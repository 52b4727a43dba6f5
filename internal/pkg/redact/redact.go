// redact прячет чувствительные значения перед записью в логи.
// Пароли, токены и их хэши в логи не попадают никогда — только маркеры.
package redact

import "strings"

// Email маскирует локальную часть адреса, домен остаётся видимым:
// "foobar@example.com" -> "fo***@example.com". Строка без единственного '@'
// маскируется целиком. Локальная часть режется по рунам, не по байтам.
func Email(s string) string {
	parts := strings.Split(s, "@")
	if len(parts) != 2 {
		return "***"
	}

	local, domain := []rune(parts[0]), parts[1]
	masked := "***"
	if len(local) > 2 {
		masked = string(local[:2]) + "***"
	}

	return masked + "@" + domain
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
