package genmeal

import "budget-meal-planner/internal/nutrition"

// placeholderTable holds the hard-coded last-resort meal for each slot
// at a reference size. placeholderFor scales the entry to the requested
// calorie target, so the result is deterministic for a given request.
var placeholderTable = map[nutrition.MealSlot]nutrition.MealCandidate{
	nutrition.SlotBreakfast: {
		Name:            "Oatmeal with banana and peanut butter",
		Description:     "Rolled oats cooked in milk, topped with sliced banana and a spoonful of peanut butter.",
		Calories:        400,
		Proteins:        14,
		Carbs:           58,
		Fats:            13,
		PrepTimeMinutes: 10,
		Ingredients: []nutrition.Ingredient{
			{Name: "rolled oats", Amount: 60, Unit: "g"},
			{Name: "milk", Amount: 200, Unit: "ml"},
			{Name: "banana", Amount: 100, Unit: "g"},
			{Name: "peanut butter", Amount: 15, Unit: "g"},
		},
	},
	nutrition.SlotLunch: {
		Name:            "Chicken and rice bowl",
		Description:     "Grilled chicken breast over rice with steamed vegetables and olive oil.",
		Calories:        600,
		Proteins:        45,
		Carbs:           65,
		Fats:            15,
		PrepTimeMinutes: 25,
		Ingredients: []nutrition.Ingredient{
			{Name: "chicken breast", Amount: 150, Unit: "g"},
			{Name: "cooked rice", Amount: 200, Unit: "g"},
			{Name: "mixed vegetables", Amount: 150, Unit: "g"},
			{Name: "olive oil", Amount: 10, Unit: "ml"},
		},
	},
	nutrition.SlotSnack: {
		Name:            "Greek yogurt with honey and walnuts",
		Description:     "Plain Greek yogurt with a drizzle of honey and crushed walnuts.",
		Calories:        250,
		Proteins:        15,
		Carbs:           22,
		Fats:            11,
		PrepTimeMinutes: 5,
		Ingredients: []nutrition.Ingredient{
			{Name: "greek yogurt", Amount: 170, Unit: "g"},
			{Name: "honey", Amount: 15, Unit: "g"},
			{Name: "walnuts", Amount: 15, Unit: "g"},
		},
	},
	nutrition.SlotDinner: {
		Name:            "Baked salmon with potatoes and salad",
		Description:     "Oven-baked salmon fillet with roasted potatoes and a green side salad.",
		Calories:        550,
		Proteins:        38,
		Carbs:           42,
		Fats:            24,
		PrepTimeMinutes: 30,
		Ingredients: []nutrition.Ingredient{
			{Name: "salmon fillet", Amount: 150, Unit: "g"},
			{Name: "potatoes", Amount: 200, Unit: "g"},
			{Name: "green salad", Amount: 100, Unit: "g"},
		},
	},
}

// placeholderFor returns the static meal for the slot scaled to the
// requested target, marked as a fallback of last resort.
func placeholderFor(req Request) nutrition.MealCandidate {
	base, ok := placeholderTable[req.Slot]
	if !ok {
		base = placeholderTable[nutrition.SlotSnack]
	}

	c := base
	if req.CalorieTarget > 0 {
		c = nutrition.ScaleTo(base, req.CalorieTarget)
	}
	if req.MaxPrepMinutes > 0 && c.PrepTimeMinutes > req.MaxPrepMinutes {
		c.PrepTimeMinutes = req.MaxPrepMinutes
	}
	c.SourceKind = nutrition.SourceGenerated
	c.Fallback = true
	return c
}
