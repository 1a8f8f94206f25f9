// Package sdp_rewrite применяет к тексту SDP упорядоченный список правил
// буквальной замены подстрок, заданных переменными канала sdp_replace*.
//
// SDP не разбирается семантически: это непрозрачный текст. Каждое правило видит
// результат предыдущего, поиск побайтовый, с учетом регистра, совпадения не
// перекрываются.
package sdp_rewrite

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/arzzra/leg_media/pkg/buffer"
	"github.com/arzzra/leg_media/pkg/variables"
)

// Result результат применения правил
type Result struct {
	Original     string // Исходный SDP
	SDP          string // SDP после всех правил
	Applied      int    // Сколько валидных правил было применено
	Replacements int    // Общее число замененных вхождений
}

// Changed сообщает, применялось ли хотя бы одно правило.
// При false SDP совпадает с Original и ничего нового не выделялось.
func (r Result) Changed() bool {
	return r.Applied > 0
}

// Engine движок замены
type Engine struct {
	maxSize int
	logger  *slog.Logger
}

// NewEngine создает движок. maxSize ограничивает размер результата каждого
// шага (0 - без ограничения), logger может быть nil.
func NewEngine(maxSize int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		maxSize: maxSize,
		logger:  logger.With(slog.String("component", "sdp_rewrite")),
	}
}

// ApplyVariables собирает правила из переменных и применяет их к SDP
func (e *Engine) ApplyVariables(sdp string, store *variables.Store) (Result, error) {
	return e.Apply(sdp, CollectRules(store))
}

// Apply последовательно применяет правила к SDP.
// Пустой SDP или пустой список правил возвращает вход без изменений.
// При ошибке выделения памяти возвращается исходный SDP и ошибка.
func (e *Engine) Apply(sdp string, rules []Rule) (Result, error) {
	result := Result{Original: sdp, SDP: sdp}
	if sdp == "" || len(rules) == 0 {
		return result, nil
	}

	current := sdp
	for _, rule := range rules {
		if rule.Search == "" || rule.Replace == "" {
			continue
		}

		out, n, err := e.applyRule(current, rule)
		if err != nil {
			return Result{Original: sdp, SDP: sdp}, fmt.Errorf("правило %s (%q): %w", rule.Variable, rule.Search, err)
		}

		current = out
		result.Applied++
		result.Replacements += n
	}

	result.SDP = current

	if result.Applied > 0 {
		e.logger.Debug("SDP после замены",
			slog.Int("rules", result.Applied),
			slog.Int("replacements", result.Replacements),
			slog.String("remote_sdp", sdp),
			slog.String("rewritten_sdp", current))
	}

	return result, nil
}

// applyRule выполняет один проход слева направо.
// После совпадения сканирование продолжается за концом совпавшего фрагмента.
func (e *Engine) applyRule(src string, rule Rule) (string, int, error) {
	b, err := buffer.NewWithCapacity(len(src), e.maxSize)
	if err != nil {
		return "", 0, err
	}

	n := 0
	i := 0
	for i < len(src) {
		j := strings.Index(src[i:], rule.Search)
		if j < 0 {
			break
		}
		if err := b.AppendString(src[i : i+j]); err != nil {
			return "", 0, err
		}
		if err := b.AppendString(rule.Replace); err != nil {
			return "", 0, err
		}
		i += j + len(rule.Search)
		n++
	}

	if err := b.AppendString(src[i:]); err != nil {
		return "", 0, err
	}

	return string(b.Finalize()), n, nil
}
