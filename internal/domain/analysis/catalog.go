package analysis

import "strings"

// AvoidFood describes a category of food to avoid during pregnancy.
type AvoidFood struct {
	Keywords []string `json:"keywords"`
	Message  string   `json:"message"`
	Details  string   `json:"details"`
}

var avoidFoods = map[string]AvoidFood{
	"raw_fish": {
		Keywords: []string{"sashimi", "sushi", "raw fish", "tuna", "salmon", "刺身", "さしみ", "生魚", "寿司", "マグロ", "サーモン"},
		Message:  "Contains raw fish, which is best avoided during pregnancy.",
		Details:  "Raw fish carries a risk of listeria and parasites. Please consult your doctor for details.",
	},
	"raw_meat": {
		Keywords: []string{"yukhoe", "rare steak", "prosciutto", "raw meat", "ユッケ", "レアステーキ", "生ハム", "生肉"},
		Message:  "Contains raw meat, which is best avoided during pregnancy.",
		Details:  "Raw meat carries a risk of toxoplasma and listeria. Please consult your doctor for details.",
	},
	"raw_egg": {
		Keywords: []string{"raw egg", "soft-boiled egg", "carbonara", "生卵", "半熟卵", "カルボナーラ"},
		Message:  "Contains raw egg, which needs care during pregnancy.",
		Details:  "Raw egg carries a risk of salmonella. Please consult your doctor for details.",
	},
	"soft_cheese": {
		Keywords: []string{"natural cheese", "camembert", "blue cheese", "brie", "ナチュラルチーズ", "カマンベール", "ブルーチーズ"},
		Message:  "Contains soft or unpasteurised cheese, which is best avoided during pregnancy.",
		Details:  "Soft cheese carries a risk of listeria. Please consult your doctor for details.",
	},
	"alcohol": {
		Keywords: []string{"alcohol", "wine", "beer", "sake", "shochu", "アルコール", "ワイン", "ビール", "日本酒", "焼酎"},
		Message:  "Contains alcohol. Please avoid alcohol during pregnancy.",
		Details:  "Alcohol may affect fetal development. Please consult your doctor for details.",
	},
}

// AvoidFoods returns a copy of the avoid-food catalog keyed by category.
func AvoidFoods() map[string]AvoidFood {
	out := make(map[string]AvoidFood, len(avoidFoods))
	for k, v := range avoidFoods {
		v.Keywords = append([]string(nil), v.Keywords...)
		out[k] = v
	}
	return out
}

// Categorize returns the catalog category whose keywords appear in name, or
// "" when none match.
func Categorize(name string) string {
	lower := strings.ToLower(name)
	for _, key := range []string{"raw_fish", "raw_meat", "raw_egg", "soft_cheese", "alcohol"} {
		for _, kw := range avoidFoods[key].Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return key
			}
		}
	}
	return ""
}
