package vision

// MealPrompt is the fixed instruction sent with every food or menu photo.
// Photo and menu scans use the exact same prompt; the model handles both.
const MealPrompt = "You are an experienced nutritionist. The image shows either a plate of food or a restaurant menu. " +
	"Identify every dish you can see on the plate or read on the menu. " +
	"Respond with a single JSON object and nothing else: no prose, no markdown fences. " +
	"Use exactly this shape: " +
	`{"dishes":[{"name":"...","description":"...","calories":0,"protein_g":0,"carbs_g":0,"fat_g":0,"health_score":0}]}. ` +
	"Estimate portion sizes when they are not obvious; health_score is an integer from 1 (worst) to 10 (best). " +
	`If the image contains neither food nor a menu, return {"dishes":[]}.`

// RecommendPrompt extends MealPrompt with a recommendation clause.
const RecommendPrompt = MealPrompt +
	` In addition, include a "recommendations" array with the names of up to three dishes from "dishes" ` +
	`that best fit a balanced diet, ordered best first, and a short "reason" string explaining the choice.`
