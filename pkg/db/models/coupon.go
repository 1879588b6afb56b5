package models

import "time"

// Coupon is a flat percent-off discount code applied at order creation.
type Coupon struct {
	Code       string    `gorm:"column:code;primaryKey"`
	PercentOff int       `gorm:"column:percent_off;not null"`
	Active     bool      `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
