// Package multipart собирает тело multipart/mixed из переменных канала и
// согласованного SDP для исходящего SIP сообщения.
//
// Каждое значение переменной с заданным именем (скаляр или элемент массива)
// имеет вид "content/type:content" и превращается в отдельную MIME часть.
// SDP, если он передан, добавляется последней частью. Границей служит
// уникальный идентификатор сессии; экранирование не выполняется, поэтому
// содержимое частей не должно содержать эту строку.
package multipart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arzzra/leg_media/pkg/buffer"
	"github.com/arzzra/leg_media/pkg/variables"
)

const (
	// SDPContentType тип части с SDP
	SDPContentType = "application/sdp"
	// MixedContentType тип составного тела
	MixedContentType = "multipart/mixed"
	// DefaultPrefix имя переменной с частями по умолчанию
	DefaultPrefix = "sip_multipart"
)

// ErrEmptyBoundary возвращается, если у сессии нет идентификатора
var ErrEmptyBoundary = errors.New("multipart: пустая граница")

// Source источник данных для сборки: идентификатор сессии и снимок переменных
type Source interface {
	ID() string
	Variables() *variables.Store
}

// Body готовое составное тело
type Body struct {
	Content     []byte
	ContentType string // multipart/mixed; boundary=<id>
	Boundary    string
	Parts       int // Количество частей из переменных, без SDP
	HasSDP      bool
}

// ContentTypeHeader формирует значение заголовка Content-Type
func ContentTypeHeader(boundary string) string {
	return MixedContentType + "; boundary=" + boundary
}

// Build собирает тело из переменных с именем prefix (без учета регистра,
// точное совпадение). Пустой sdp означает отсутствие SDP части.
//
// Возвращает nil без ошибки, если ни одной части не добавлено: вызывающий
// отправляет обычное SDP тело.
func Build(src Source, prefix, sdp string, maxSize int) (*Body, error) {
	boundary := src.ID()
	if boundary == "" {
		return nil, ErrEmptyBoundary
	}

	store := src.Variables()
	if store == nil {
		return nil, nil
	}

	b := buffer.New(maxSize)
	parts := 0
	var err error

	store.Range(func(name string, values []string) bool {
		if !strings.EqualFold(name, prefix) {
			return true
		}
		for _, value := range values {
			part, ok := ParsePart(value)
			if !ok {
				continue
			}
			if err = writePart(b, boundary, part); err != nil {
				return false
			}
			parts++
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки multipart: %w", err)
	}

	if parts == 0 {
		return nil, nil
	}

	body := &Body{
		ContentType: ContentTypeHeader(boundary),
		Boundary:    boundary,
		Parts:       parts,
	}

	if sdp != "" {
		// SDP всегда выводится без учета Sentinel
		if err := b.Appendf("--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n%s\r\n",
			boundary, SDPContentType, len(sdp)+1, sdp); err != nil {
			return nil, fmt.Errorf("ошибка добавления SDP части: %w", err)
		}
		body.HasSDP = true
	}

	if err := b.Appendf("--%s--\r\n", boundary); err != nil {
		return nil, fmt.Errorf("ошибка завершения multipart: %w", err)
	}

	body.Content = b.Finalize()
	return body, nil
}

// writePart выводит одну часть.
// Для содержимого с Sentinel пустая строка между заголовками и телом не
// добавляется: ее поставляет само содержимое.
func writePart(b *buffer.Builder, boundary string, part Part) error {
	if part.HasSentinel() {
		return b.Appendf("--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n%s\r\n",
			boundary, part.ContentType, part.ContentLength(), part.Body())
	}
	return b.Appendf("--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n%s\r\n",
		boundary, part.ContentType, part.ContentLength(), part.Body())
}
