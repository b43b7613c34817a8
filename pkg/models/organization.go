package models

import "time"

type SubscriptionPlan string

const (
	PlanMonthly SubscriptionPlan = "monthly"
	PlanYearly  SubscriptionPlan = "yearly"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionInactive  SubscriptionStatus = "inactive"
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Organization is a tenant grouping of profiles and invitations.
type Organization struct {
	ID                 string             `json:"id"`
	OrganizationName   string             `json:"organization_name"`
	OrganizationType   string             `json:"organization_type"`
	ExpectedStudents   string             `json:"expected_students"`
	SubscriptionPlan   SubscriptionPlan   `json:"subscription_plan"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	TrialEndsAt        *time.Time         `json:"trial_ends_at"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}
