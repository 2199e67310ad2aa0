package model

import "time"

// Tariff is the insurance plan a quote is priced for.
type Tariff string

const (
	TariffStandard Tariff = "standard"
	TariffPremium  Tariff = "premium"
)

// Valid reports whether t is a known tariff.
func (t Tariff) Valid() bool {
	return t == TariffStandard || t == TariffPremium
}

// CarType is the vehicle category a quote is priced for.
type CarType string

const (
	CarSedan CarType = "sedan"
	CarSUV   CarType = "suv"
	CarTruck CarType = "truck"
)

// Valid reports whether c is a known car type.
func (c CarType) Valid() bool {
	switch c {
	case CarSedan, CarSUV, CarTruck:
		return true
	}
	return false
}

// Quote is a priced offer for a tariff/age/experience/car combination. Quotes
// are immutable once created.
//
// Fields:
//
//	ID         – primary key (uuid).
//	Tariff     – tariff the price was calculated for.
//	Age        – driver age in years.
//	Experience – driving experience in years.
//	CarType    – vehicle category.
//	Price      – calculated price rounded to cents.
type Quote struct {
	ID         string     `json:"id"`
	Tariff     Tariff     `json:"tariff"`
	Age        int        `json:"age"`
	Experience int        `json:"experience"`
	CarType    CarType    `json:"car_type"`
	Price      Money      `json:"price"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}
