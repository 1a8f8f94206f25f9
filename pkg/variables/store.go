// Package variables реализует хранилище переменных канала: упорядоченное,
// нечувствительное к регистру имен, с поддержкой многозначных (array) переменных.
//
// Порядок обхода различных имен совпадает с порядком их первой вставки, порядок
// элементов массива совпадает с порядком добавления. Store не потокобезопасен:
// владелец (канал) защищает его своим мьютексом и отдает наружу снимки через Clone.
package variables

import (
	"strings"
)

const (
	// ArrayPrefix префикс сериализованного массива: ARRAY::a|:b|:c
	ArrayPrefix = "ARRAY::"
	// ArraySeparator разделитель элементов сериализованного массива
	ArraySeparator = "|:"
)

type entry struct {
	name   string
	values []string
	array  bool
}

// Store упорядоченный набор переменных
type Store struct {
	entries []entry
	index   map[string]int
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

func key(name string) string {
	return strings.ToLower(name)
}

// DecodeArray разбирает значение формата ARRAY::a|:b.
// Второй результат false, если значение не является сериализованным массивом.
func DecodeArray(value string) ([]string, bool) {
	if !strings.HasPrefix(value, ArrayPrefix) {
		return nil, false
	}
	return strings.Split(value[len(ArrayPrefix):], ArraySeparator), true
}

// EncodeArray сериализует элементы в формат ARRAY::a|:b
func EncodeArray(values []string) string {
	return ArrayPrefix + strings.Join(values, ArraySeparator)
}

func (s *Store) lookup(name string) (int, bool) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	i, ok := s.index[key(name)]
	return i, ok
}

func (s *Store) put(name string, values []string, array bool) {
	if name == "" {
		return
	}
	if i, ok := s.lookup(name); ok {
		s.entries[i].values = values
		s.entries[i].array = array
		return
	}
	s.index[key(name)] = len(s.entries)
	s.entries = append(s.entries, entry{name: name, values: values, array: array})
}

// Set устанавливает скалярное значение, заменяя предыдущее.
// Значение формата ARRAY::a|:b сохраняется как массив.
// Позиция существующей переменной в порядке обхода не меняется.
func (s *Store) Set(name, value string) {
	if values, ok := DecodeArray(value); ok {
		s.put(name, values, true)
		return
	}
	s.put(name, []string{value}, false)
}

// SetArray устанавливает многозначную переменную
func (s *Store) SetArray(name string, values ...string) {
	s.put(name, append([]string(nil), values...), true)
}

// Append добавляет элемент к переменной, превращая ее в массив.
// Если переменной нет, она создается как массив из одного элемента.
func (s *Store) Append(name, value string) {
	if name == "" {
		return
	}
	if i, ok := s.lookup(name); ok {
		s.entries[i].values = append(s.entries[i].values, value)
		s.entries[i].array = true
		return
	}
	s.put(name, []string{value}, true)
}

// Unset удаляет переменную
func (s *Store) Unset(name string) {
	i, ok := s.lookup(name)
	if !ok {
		return
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	delete(s.index, key(name))
	for j := i; j < len(s.entries); j++ {
		s.index[key(s.entries[j].name)] = j
	}
}

// Get возвращает значение переменной.
// Для массива возвращается первый элемент.
func (s *Store) Get(name string) (string, bool) {
	i, ok := s.lookup(name)
	if !ok || len(s.entries[i].values) == 0 {
		return "", false
	}
	return s.entries[i].values[0], true
}

// Values возвращает копию всех значений переменной
func (s *Store) Values(name string) []string {
	i, ok := s.lookup(name)
	if !ok {
		return nil
	}
	return append([]string(nil), s.entries[i].values...)
}

// IsArray сообщает, является ли переменная многозначной
func (s *Store) IsArray(name string) bool {
	i, ok := s.lookup(name)
	return ok && s.entries[i].array
}

// Len возвращает количество различных переменных
func (s *Store) Len() int {
	return len(s.entries)
}

// Names возвращает имена переменных в порядке вставки
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.name)
	}
	return names
}

// Range обходит переменные в порядке вставки.
// Скаляр передается как срез из одного элемента. Обход прекращается,
// если fn вернула false. Изменять Store внутри fn нельзя.
func (s *Store) Range(fn func(name string, values []string) bool) {
	for _, e := range s.entries {
		if !fn(e.name, e.values) {
			return
		}
	}
}

// Clone возвращает независимый снимок хранилища
func (s *Store) Clone() *Store {
	c := &Store{
		entries: make([]entry, len(s.entries)),
		index:   make(map[string]int, len(s.entries)),
	}
	for i, e := range s.entries {
		c.entries[i] = entry{
			name:   e.name,
			values: append([]string(nil), e.values...),
			array:  e.array,
		}
		c.index[key(e.name)] = i
	}
	return c
}
