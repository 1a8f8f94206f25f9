package sdp_rewrite

import (
	"strings"

	"github.com/arzzra/leg_media/pkg/variables"
)

// VariablePrefix префикс имен переменных с правилами замены.
// Сравнение по префиксу без учета регистра: sdp_replace, SDP_REPLACE_ip, sdp_replace_codec.
const VariablePrefix = "sdp_replace"

// RuleSeparator отделяет искомую строку от замены: "search|replace"
const RuleSeparator = '|'

// Rule одно правило буквальной замены подстроки
type Rule struct {
	Variable string // Имя переменной, из которой получено правило
	Search   string // Искомая подстрока, не пустая
	Replace  string // Замена, не пустая
}

// ParseRule разбирает значение "search|replace" по первому символу '|'.
// Правило невалидно, если разделителя нет, искомая строка пуста или
// замена отсутствует.
func ParseRule(value string) (Rule, bool) {
	i := strings.IndexByte(value, RuleSeparator)
	if i <= 0 {
		return Rule{}, false
	}

	replace := value[i+1:]
	if replace == "" {
		return Rule{}, false
	}

	return Rule{Search: value[:i], Replace: replace}, true
}

// IsRuleVariable проверяет, относится ли имя переменной к правилам замены
func IsRuleVariable(name string) bool {
	return len(name) >= len(VariablePrefix) &&
		strings.EqualFold(name[:len(VariablePrefix)], VariablePrefix)
}

// CollectRules извлекает правила из хранилища в порядке обхода переменных,
// элементы массива - в порядке списка. Невалидные значения пропускаются.
func CollectRules(store *variables.Store) []Rule {
	if store == nil {
		return nil
	}

	var rules []Rule
	store.Range(func(name string, values []string) bool {
		if !IsRuleVariable(name) {
			return true
		}
		for _, value := range values {
			rule, ok := ParseRule(value)
			if !ok {
				continue
			}
			rule.Variable = name
			rules = append(rules, rule)
		}
		return true
	})

	return rules
}
