package constants

// Category is one of the three normalized moderation categories.
type Category string

const (
	NSFW     Category = "nsfw"
	Violence Category = "violence"
	Scene    Category = "scene"
)

var allCategories = []Category{NSFW, Violence, Scene}

// Composite weights. They sum to 1.0.
var CategoryWeights = map[Category]float64{
	NSFW:     0.5,
	Violence: 0.3,
	Scene:    0.2,
}

// Categories returns the categories in reporting order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}
