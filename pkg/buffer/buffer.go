// Package buffer предоставляет растущий байтовый буфер для сборки SDP и MIME тел.
//
// Емкость растет геометрически, сборка тела длиной n занимает амортизированное O(n).
// Невозможность выделить память возвращается как ErrAllocation.
package buffer

import (
	"errors"
	"fmt"
)

// ErrAllocation возвращается, когда буфер не может вырасти до нужного размера
var ErrAllocation = errors.New("buffer: не удалось выделить память")

// minCapacity минимальная емкость при первом выделении
const minCapacity = 64

// Builder накапливает байты с геометрическим ростом емкости.
// Нулевое значение готово к использованию и не ограничено по размеру.
//
// Builder не является потокобезопасным.
type Builder struct {
	buf     []byte
	maxSize int
	grows   int
}

// New создает Builder с ограничением maxSize байт (0 - без ограничения)
func New(maxSize int) *Builder {
	return &Builder{maxSize: maxSize}
}

// NewWithCapacity создает Builder с заранее выделенной емкостью.
// Подсказка емкости обрезается до maxSize, если он задан.
func NewWithCapacity(capacity, maxSize int) (*Builder, error) {
	b := New(maxSize)
	if capacity > 0 {
		if maxSize > 0 && capacity > maxSize {
			capacity = maxSize
		}
		if err := b.grow(capacity); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Append добавляет байты в конец буфера
func (b *Builder) Append(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if err := b.grow(len(p)); err != nil {
		return err
	}
	b.buf = append(b.buf, p...)
	return nil
}

// AppendString добавляет строку без промежуточного преобразования в []byte
func (b *Builder) AppendString(s string) error {
	if len(s) == 0 {
		return nil
	}
	if err := b.grow(len(s)); err != nil {
		return err
	}
	b.buf = append(b.buf, s...)
	return nil
}

// AppendByte добавляет один байт
func (b *Builder) AppendByte(c byte) error {
	if err := b.grow(1); err != nil {
		return err
	}
	b.buf = append(b.buf, c)
	return nil
}

// Appendf форматирует строку и добавляет ее в буфер
func (b *Builder) Appendf(format string, args ...interface{}) error {
	return b.AppendString(fmt.Sprintf(format, args...))
}

// Len возвращает количество накопленных байт
func (b *Builder) Len() int {
	return len(b.buf)
}

// Cap возвращает текущую емкость
func (b *Builder) Cap() int {
	return cap(b.buf)
}

// Grows возвращает количество перевыделений памяти.
// Используется в тестах для проверки геометрического роста.
func (b *Builder) Grows() int {
	return b.grows
}

// Bytes возвращает накопленные байты без копирования.
// Срез действителен до следующего изменения буфера.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// String возвращает содержимое как текст
func (b *Builder) String() string {
	return string(b.buf)
}

// Finalize отдает накопленные байты вызывающему и сбрасывает Builder.
// Возвращенный срез принадлежит вызывающему: последующие Append не могут
// его изменить.
func (b *Builder) Finalize() []byte {
	out := b.buf[:len(b.buf):len(b.buf)]
	b.buf = nil
	return out
}

// Reset очищает буфер, сохраняя выделенную память
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
}

// grow гарантирует место еще для n байт
func (b *Builder) grow(n int) (err error) {
	need := len(b.buf) + n
	if need < len(b.buf) {
		return fmt.Errorf("%w: переполнение размера", ErrAllocation)
	}
	if b.maxSize > 0 && need > b.maxSize {
		return fmt.Errorf("%w: нужно %d байт при лимите %d", ErrAllocation, need, b.maxSize)
	}
	if need <= cap(b.buf) {
		return nil
	}

	newCap := cap(b.buf) * 2
	if newCap < minCapacity {
		newCap = minCapacity
	}
	if newCap < need {
		newCap = need
	}
	if b.maxSize > 0 && newCap > b.maxSize {
		newCap = b.maxSize
	}

	// make паникует на недопустимой длине, превращаем это в ошибку
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()

	nb := make([]byte, len(b.buf), newCap)
	copy(nb, b.buf)
	b.buf = nb
	b.grows++
	return nil
}
