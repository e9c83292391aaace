package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFoods_Safe(t *testing.T) {
	v := FromFoods([]FoodItem{{Name: "rice"}, {Name: "grilled salmon", Details: "cooked"}})

	assert.True(t, v.Safe)
	assert.Equal(t, []string{}, v.DetectedFood)
	assert.Equal(t, MessageSafe, v.Message)
	assert.Empty(t, v.Details)
	assert.Equal(t, "safe", v.Outcome())
}

func TestFromFoods_NoFoods(t *testing.T) {
	v := FromFoods(nil)
	assert.True(t, v.Safe)
	assert.NotNil(t, v.DetectedFood)
	assert.False(t, v.Failed())
}

func TestFromFoods_Risky(t *testing.T) {
	v := FromFoods([]FoodItem{
		{Name: "sashimi", Risk: true, Details: "listeria"},
		{Name: "rice"},
		{Name: "sake", Risk: true, Details: "alcohol"},
	})

	assert.False(t, v.Safe)
	assert.Equal(t, []string{"sashimi", "sake"}, v.DetectedFood)
	assert.Equal(t, MessageRisky, v.Message)
	assert.Equal(t, "sashimi: listeria\nsake: alcohol", v.Details)
	assert.Equal(t, "risky", v.Outcome())
}

func TestFailure(t *testing.T) {
	v := Failure(MessageNoText, `{"choices":[]}`)
	assert.False(t, v.Safe)
	assert.Nil(t, v.DetectedFood)
	assert.True(t, v.Failed())
	assert.Equal(t, "failed", v.Outcome())
}

func TestVerdict_JSON(t *testing.T) {
	failed, err := json.Marshal(Failure("boom", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"safe":false,"detected_food":null,"message":"boom","details":""}`, string(failed))

	safe, err := json.Marshal(FromFoods(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"safe":true,"detected_food":[],"message":"`+MessageSafe+`","details":""}`, string(safe))
}

func TestCategorize(t *testing.T) {
	assert.Equal(t, "raw_fish", Categorize("Salmon Sashimi"))
	assert.Equal(t, "alcohol", Categorize("glass of red wine"))
	assert.Equal(t, "raw_egg", Categorize("生卵"))
	assert.Equal(t, "", Categorize("steamed rice"))
}

func TestAvoidFoods_ReturnsCopy(t *testing.T) {
	catalog := AvoidFoods()
	require.Len(t, catalog, 5)
	catalog["alcohol"].Keywords[0] = "mutated"

	assert.Equal(t, "alcohol", AvoidFoods()["alcohol"].Keywords[0])
}
