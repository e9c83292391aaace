package analysis

import (
	"errors"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

var (
	ErrNoJSON           = errors.New("no JSON found")
	ErrJSONParse        = errors.New("JSON parse error")
	ErrInvalidStructure = errors.New("invalid response structure")
)

// MaxFieldLength bounds name and details, in runes.
const MaxFieldLength = 500

var (
	blankLines  = regexp.MustCompile(`\n{3,}`)
	unsafeChars = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")
)

// Parse extracts the foods list from free-form model text. The JSON object is
// taken from the first '{' to the last '}'.
func Parse(raw string) ([]FoodItem, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}

	var doc map[string]any
	if err := sonic.UnmarshalString(raw[start:end+1], &doc); err != nil {
		return nil, ErrJSONParse
	}

	list, ok := doc["foods"].([]any)
	if !ok {
		return nil, ErrInvalidStructure
	}

	foods := make([]FoodItem, 0, len(list))
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		name, ok := obj["name"].(string)
		if !ok {
			continue
		}
		name = Clean(name)
		if strings.TrimSpace(name) == "" {
			continue
		}
		details, _ := obj["details"].(string)
		foods = append(foods, FoodItem{
			Name:    name,
			Risk:    coerceRisk(obj["risk"]),
			Details: Clean(details),
		})
	}
	return foods, nil
}

// Clean truncates s to MaxFieldLength runes, strips markup characters and
// collapses runs of blank lines.
func Clean(s string) string {
	if r := []rune(s); len(r) > MaxFieldLength {
		s = string(r[:MaxFieldLength])
	}
	s = unsafeChars.Replace(s)
	return blankLines.ReplaceAllString(s, "\n\n")
}

func coerceRisk(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}
