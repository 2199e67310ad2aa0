// Package queue carries application events over RabbitMQ: a publisher used
// by the application service and a background consumer that appends every
// received event to a log file.
package queue

// ApplicationCreatedEvent is published after an application is stored. It
// contains enough for downstream consumers to log or notify without
// querying the primary database.
type ApplicationCreatedEvent struct {
	ApplicationID string `json:"application_id"`
	OwnerID       string `json:"owner_id"`
	Username      string `json:"username"`
	QuoteID       string `json:"quote_id"`
	Tariff        string `json:"tariff"`
	Price         string `json:"price"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
}
