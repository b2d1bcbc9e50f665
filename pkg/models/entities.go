package models

import "time"

// LoyaltyTier represents a customer loyalty tier derived from point totals.
type LoyaltyTier string

const (
	TierGold   LoyaltyTier = "GOLD"
	TierSilver LoyaltyTier = "SILVER"
	TierBronze LoyaltyTier = "BRONZE"
	TierMember LoyaltyTier = "MEMBER"
)

// Tier thresholds are monotonic in point totals: GOLD >= 1000 > SILVER >= 500 >
// BRONZE >= 100 > MEMBER.
const (
	GoldThreshold   = 1000
	SilverThreshold = 500
	BronzeThreshold = 100
)

// TierForPoints returns the loyalty tier for a point total.
func TierForPoints(points int) LoyaltyTier {
	switch {
	case points >= GoldThreshold:
		return TierGold
	case points >= SilverThreshold:
		return TierSilver
	case points >= BronzeThreshold:
		return TierBronze
	default:
		return TierMember
	}
}

// Customer is a pizzeria customer. Email is unique across customers.
// LoyaltyPoints and LoyaltyTier are derived values, never authoritative.
type Customer struct {
	ID            int         `yaml:"id"`
	FirstName     string      `yaml:"first_name"`
	LastName      string      `yaml:"last_name"`
	Email         string      `yaml:"email"`
	Phone         string      `yaml:"phone"`
	City          string      `yaml:"city"`
	SignedUpAt    time.Time   `yaml:"signed_up_at"`
	LoyaltyPoints int         `yaml:"loyalty_points"`
	LoyaltyTier   LoyaltyTier `yaml:"loyalty_tier"`
}

// Employee is a pizzeria staff member assigned to a location.
type Employee struct {
	ID         int       `yaml:"id"`
	FirstName  string    `yaml:"first_name"`
	LastName   string    `yaml:"last_name"`
	Role       string    `yaml:"role"`
	LocationID int       `yaml:"location_id"`
	HiredAt    time.Time `yaml:"hired_at"`
}

// Location is a pizzeria store location.
type Location struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	City    string `yaml:"city"`
	Address string `yaml:"address"`
	Region  string `yaml:"region"`
}

// MenuItem is a sellable item with category, size, price and unit cost.
type MenuItem struct {
	ID       int     `yaml:"id"`
	Name     string  `yaml:"name"`
	Category string  `yaml:"category"`
	Size     string  `yaml:"size"`
	Price    float64 `yaml:"price"`
	Cost     float64 `yaml:"cost"`
}

// Order statuses.
const (
	OrderPlaced    = "PLACED"
	OrderPreparing = "PREPARING"
	OrderCompleted = "COMPLETED"
	OrderCancelled = "CANCELLED"
)

// Order channels.
const (
	ChannelDineIn   = "DINE_IN"
	ChannelTakeout  = "TAKEOUT"
	ChannelDelivery = "DELIVERY"
	ChannelOnline   = "ONLINE"
)

// Order is an order header. It references exactly one Customer, Employee and
// Location.
type Order struct {
	ID         int       `yaml:"id"`
	CustomerID int       `yaml:"customer_id"`
	EmployeeID int       `yaml:"employee_id"`
	LocationID int       `yaml:"location_id"`
	Channel    string    `yaml:"channel"`
	Status     string    `yaml:"status"`
	PlacedAt   time.Time `yaml:"placed_at"`
	Total      float64   `yaml:"total"`
}

// OrderItem is an order detail line referencing exactly one Order and one
// MenuItem.
type OrderItem struct {
	ID         int     `yaml:"id"`
	OrderID    int     `yaml:"order_id"`
	MenuItemID int     `yaml:"menu_item_id"`
	Quantity   int     `yaml:"quantity"`
	UnitPrice  float64 `yaml:"unit_price"`
	LineTotal  float64 `yaml:"line_total"`
}

// Review is customer feedback on an order. Rating lies in [1,5]; Sentiment is
// a derived score in [-1,1] filled in by the scored_reviews pipeline table.
type Review struct {
	ID         int       `yaml:"id"`
	OrderID    int       `yaml:"order_id"`
	CustomerID int       `yaml:"customer_id"`
	Rating     int       `yaml:"rating"`
	Text       string    `yaml:"text"`
	Sentiment  float64   `yaml:"sentiment"`
	CreatedAt  time.Time `yaml:"created_at"`
}

// InventoryRecord is a periodic ingredient count at a location.
type InventoryRecord struct {
	ID          int       `yaml:"id"`
	LocationID  int       `yaml:"location_id"`
	Ingredient  string    `yaml:"ingredient"`
	CountedQty  float64   `yaml:"counted_qty"`
	ExpectedQty float64   `yaml:"expected_qty"`
	CountedAt   time.Time `yaml:"counted_at"`
}

// DailySalesSummary is a derived per-location, per-day sales aggregate.
type DailySalesSummary struct {
	LocationID    int       `yaml:"location_id"`
	Date          time.Time `yaml:"date"`
	OrderCount    int       `yaml:"order_count"`
	ItemsSold     int       `yaml:"items_sold"`
	Revenue       float64   `yaml:"revenue"`
	AvgOrderValue float64   `yaml:"avg_order_value"`
}
