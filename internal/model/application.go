package model

import "time"

// ApplicationStatus is the processing state of an insurance application.
type ApplicationStatus string

const (
	ApplicationNew      ApplicationStatus = "new"
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a user's request for a policy based on an existing quote.
// Applications are visible only to their owner.
type Application struct {
	ID        string            // applications.id (uuid)
	FullName  string            // applications.full_name
	Phone     string            // applications.phone
	Email     string            // applications.email
	Tariff    Tariff            // applications.tariff
	QuoteID   string            // applications.quote_id
	OwnerID   string            // applications.owner_id
	Status    ApplicationStatus // applications.status
	CreatedAt time.Time         // applications.created_at
	UpdatedAt *time.Time        // applications.updated_at (nullable)
}
