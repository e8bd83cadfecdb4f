package domain

// Collections the change feed covers.
const (
	CollectionProducts = "products"
	CollectionSales    = "sales"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Change signals that a collection was mutated. It carries no data;
// consumers re-fetch the collection instead of applying the payload.
type Change struct {
	Collection string    `json:"collection"`
	Event      EventType `json:"event"`
}
