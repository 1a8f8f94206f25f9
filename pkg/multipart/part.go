package multipart

import "strings"

// Sentinel в начале содержимого части означает, что после него идут
// собственные заголовки части вместе с пустой строкой и телом.
const Sentinel = '~'

// Part одна часть multipart тела, полученная из значения "content/type:content"
type Part struct {
	ContentType string
	Content     string // Содержимое после первого ':' вместе с возможным Sentinel
}

// ParsePart разбирает значение переменной по первому ':'.
// Значения без ':' или с пустым типом невалидны.
func ParsePart(value string) (Part, bool) {
	i := strings.IndexByte(value, ':')
	if i <= 0 {
		return Part{}, false
	}
	return Part{ContentType: value[:i], Content: value[i+1:]}, true
}

// HasSentinel сообщает, начинается ли содержимое с Sentinel
func (p Part) HasSentinel() bool {
	return len(p.Content) > 0 && p.Content[0] == Sentinel
}

// Body возвращает байты, которые уходят в сеть после заголовков части
func (p Part) Body() string {
	if p.HasSentinel() {
		return p.Content[1:]
	}
	return p.Content
}

// ContentLength возвращает значение заголовка Content-Length части.
//
// Совместимость с существующими получателями: для содержимого с Sentinel
// длина считается вместе с символом '~', иначе к длине добавляется единица.
// Оба значения не совпадают с фактическим числом байт тела и менять их нельзя
// без проверки на реальном трафике.
func (p Part) ContentLength() int {
	if p.HasSentinel() {
		return len(p.Content)
	}
	return len(p.Content) + 1
}
