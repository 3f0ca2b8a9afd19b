// Package payment holds the subscription plans and the PayPal integration.
package payment

import (
	"context"
)

// ChargeInterval is how often a plan bills.
type ChargeInterval string

const (
	IntervalMonth ChargeInterval = "month"
	IntervalYear  ChargeInterval = "year"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Plan is a paid subscription tier. ExternalID references the plan on the
// payment provider side (PayPal plan id).
type Plan struct {
	ID         string         `json:"id"`
	Interval   ChargeInterval `json:"interval"`
	Charge     int64          `json:"charge"`
	Currency   Currency       `json:"currency"`
	ExternalID string         `json:"external_id,omitempty"`
}

// PlanStore manages plan records.
type PlanStore interface {
	FindByID(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
	Create(ctx context.Context, plan *Plan) error
}
