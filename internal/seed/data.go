package seed

// Mood categories.
const (
	CategoryPositive = "positive"
	CategoryNeutral  = "neutral"
	CategoryNegative = "negative"
)

// Mood is a default mood row.
type Mood struct {
	Name     string
	Icon     string
	Category string
}

// Prompt is a default writing prompt.
type Prompt struct {
	Text          string
	Category      string
	Difficulty    int
	EstimatedTime int // minutes
}

// DefaultMoods are the moods every installation starts with.
var DefaultMoods = []Mood{
	{Name: "happy", Icon: "😊", Category: CategoryPositive},
	{Name: "excited", Icon: "🤩", Category: CategoryPositive},
	{Name: "grateful", Icon: "🙏", Category: CategoryPositive},
	{Name: "calm", Icon: "😌", Category: CategoryPositive},
	{Name: "content", Icon: "🙂", Category: CategoryPositive},
	{Name: "neutral", Icon: "😐", Category: CategoryNeutral},
	{Name: "tired", Icon: "😴", Category: CategoryNeutral},
	{Name: "bored", Icon: "🥱", Category: CategoryNeutral},
	{Name: "sad", Icon: "😢", Category: CategoryNegative},
	{Name: "anxious", Icon: "😰", Category: CategoryNegative},
	{Name: "angry", Icon: "😠", Category: CategoryNegative},
	{Name: "stressed", Icon: "😫", Category: CategoryNegative},
}

// DefaultPrompts are the writing prompts every installation starts with.
var DefaultPrompts = []Prompt{
	{Text: "What are three things you are grateful for today?", Category: "gratitude", Difficulty: 1, EstimatedTime: 5},
	{Text: "Describe a moment today that made you smile.", Category: "gratitude", Difficulty: 1, EstimatedTime: 5},
	{Text: "What is one thing you learned this week?", Category: "reflection", Difficulty: 1, EstimatedTime: 5},
	{Text: "What challenge are you facing right now, and what is one small step toward it?", Category: "growth", Difficulty: 2, EstimatedTime: 10},
	{Text: "Write a letter to your future self one year from now.", Category: "goals", Difficulty: 2, EstimatedTime: 15},
	{Text: "Which habit would you like to build, and why does it matter to you?", Category: "goals", Difficulty: 2, EstimatedTime: 10},
	{Text: "Describe a place where you feel completely at ease.", Category: "mindfulness", Difficulty: 1, EstimatedTime: 5},
	{Text: "What emotion showed up most often today, and what triggered it?", Category: "emotions", Difficulty: 2, EstimatedTime: 10},
	{Text: "Think of a recent disagreement. How might the other person have seen it?", Category: "relationships", Difficulty: 3, EstimatedTime: 15},
	{Text: "What belief about yourself would you like to let go of?", Category: "growth", Difficulty: 3, EstimatedTime: 15},
}
