package seed

// menuSpec is the static pizzeria menu the generator seeds. Costs are rough
// ingredient costs so margin-based reports have something to chew on.
type menuSpec struct {
	name     string
	category string
	size     string
	price    float64
	cost     float64
}

var menuSpecs = []menuSpec{
	{"Margherita", "PIZZA", "SMALL", 9.50, 3.10},
	{"Margherita", "PIZZA", "MEDIUM", 12.50, 4.20},
	{"Margherita", "PIZZA", "LARGE", 15.50, 5.30},
	{"Pepperoni", "PIZZA", "SMALL", 10.50, 3.60},
	{"Pepperoni", "PIZZA", "MEDIUM", 13.50, 4.80},
	{"Pepperoni", "PIZZA", "LARGE", 16.50, 6.00},
	{"Quattro Formaggi", "PIZZA", "MEDIUM", 14.50, 5.40},
	{"Quattro Formaggi", "PIZZA", "LARGE", 17.50, 6.60},
	{"Diavola", "PIZZA", "MEDIUM", 14.00, 5.00},
	{"Diavola", "PIZZA", "LARGE", 17.00, 6.10},
	{"Capricciosa", "PIZZA", "MEDIUM", 14.50, 5.50},
	{"Prosciutto e Funghi", "PIZZA", "LARGE", 17.50, 6.80},
	{"Veggie Garden", "PIZZA", "MEDIUM", 13.00, 4.40},
	{"BBQ Chicken", "PIZZA", "LARGE", 18.00, 7.00},
	{"Garlic Knots", "SIDE", "REGULAR", 5.50, 1.40},
	{"Bruschetta", "SIDE", "REGULAR", 6.50, 1.90},
	{"Caesar Salad", "SIDE", "REGULAR", 8.50, 2.60},
	{"Caprese Salad", "SIDE", "REGULAR", 9.00, 3.00},
	{"Mozzarella Sticks", "SIDE", "REGULAR", 7.00, 2.20},
	{"Tiramisu", "DESSERT", "REGULAR", 7.50, 2.30},
	{"Cannoli", "DESSERT", "REGULAR", 6.50, 2.00},
	{"Gelato", "DESSERT", "REGULAR", 5.50, 1.60},
	{"Cola", "DRINK", "REGULAR", 3.00, 0.80},
	{"Sparkling Water", "DRINK", "REGULAR", 2.50, 0.60},
	{"House Red", "DRINK", "GLASS", 6.50, 2.10},
}

var ingredients = []string{
	"flour", "mozzarella", "tomato sauce", "pepperoni", "basil",
	"mushrooms", "olive oil", "prosciutto", "chicken", "onions",
}

var locationSpecs = []struct {
	name, city, address, region string
}{
	{"Downtown", "Springfield", "12 Main St", "CENTRAL"},
	{"Harborview", "Springfield", "88 Pier Ave", "CENTRAL"},
	{"Northside", "Shelbyville", "401 Oak Blvd", "NORTH"},
	{"Riverbend", "Shelbyville", "7 River Rd", "NORTH"},
	{"Old Town", "Capital City", "230 King St", "SOUTH"},
}

var firstNames = []string{
	"Alex", "Bianca", "Carlos", "Dana", "Elena", "Felix", "Grace", "Hugo",
	"Iris", "Jonas", "Kara", "Liam", "Maya", "Nico", "Olive", "Pablo",
	"Quinn", "Rosa", "Sam", "Tara", "Umar", "Vera", "Wes", "Xenia", "Yara", "Zane",
}

var lastNames = []string{
	"Almeida", "Bishop", "Costa", "Duval", "Eriksen", "Fischer", "Garcia",
	"Hansen", "Ivanov", "Jensen", "Keller", "Lombardi", "Moreau", "Novak",
	"Okafor", "Petrov", "Quispe", "Rossi", "Silva", "Tanaka", "Udo",
	"Vasquez", "Weber", "Xu", "Yilmaz", "Zhang",
}

var reviewTemplates = []struct {
	rating int
	text   string
}{
	{5, "The pizza was delicious and the crust perfect. Best pizza in town!"},
	{5, "Amazing service and fresh ingredients. We loved every bite."},
	{5, "Fantastic Diavola, great staff, fast delivery. Will order again."},
	{4, "Really good pizza, friendly staff. Parking was a bit tight."},
	{4, "Tasty and fresh, though the wait was a little long."},
	{3, "Decent food but nothing special. Average experience overall."},
	{3, "The pizza was fine, the salad was a bit bland."},
	{2, "Disappointing. The crust was soggy and the toppings sparse."},
	{2, "Slow service and my order arrived cold."},
	{1, "Terrible experience. Wrong order, rude staff, and the pizza was burnt."},
	{1, "The worst delivery ever, over an hour late and stone cold."},
}
