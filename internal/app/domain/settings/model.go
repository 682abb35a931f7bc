// Package settings defines the singleton platform configuration record.
package settings

import "time"

// Settings is the platform-wide rate and feature configuration. Exactly one
// record exists; reads create it with defaults when absent.
type Settings struct {
	ViewRate            float64   `json:"view_rate"`
	LikeRate            float64   `json:"like_rate"`
	EarningsEnabled     bool      `json:"earnings_enabled"`
	PlatformName        string    `json:"platform_name"`
	Currency            string    `json:"currency"`
	CurrencySymbol      string    `json:"currency_symbol"`
	MinPayoutAmount     float64   `json:"min_payout_amount"`
	AutoPayoutEnabled   bool      `json:"auto_payout_enabled"`
	AutoPayoutThreshold float64   `json:"auto_payout_threshold"`
	MaxFileSize         int64     `json:"max_file_size"`
	AllowImageUploads   bool      `json:"allow_image_uploads"`
	AllowVideoUploads   bool      `json:"allow_video_uploads"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Defaults returns the configuration used when no record exists yet.
func Defaults() Settings {
	return Settings{
		ViewRate:            0.01,
		LikeRate:            0.05,
		EarningsEnabled:     true,
		PlatformName:        "DedPost",
		Currency:            "USD",
		CurrencySymbol:      "$",
		MinPayoutAmount:     10.00,
		AutoPayoutEnabled:   false,
		AutoPayoutThreshold: 100.00,
		MaxFileSize:         10 * 1024 * 1024,
		AllowImageUploads:   true,
		AllowVideoUploads:   true,
	}
}

// Update carries a partial settings change. Nil fields are left untouched.
type Update struct {
	ViewRate            *float64 `json:"view_rate"`
	LikeRate            *float64 `json:"like_rate"`
	EarningsEnabled     *bool    `json:"earnings_enabled"`
	PlatformName        *string  `json:"platform_name"`
	Currency            *string  `json:"currency"`
	CurrencySymbol      *string  `json:"currency_symbol"`
	MinPayoutAmount     *float64 `json:"min_payout_amount"`
	AutoPayoutEnabled   *bool    `json:"auto_payout_enabled"`
	AutoPayoutThreshold *float64 `json:"auto_payout_threshold"`
	MaxFileSize         *int64   `json:"max_file_size"`
	AllowImageUploads   *bool    `json:"allow_image_uploads"`
	AllowVideoUploads   *bool    `json:"allow_video_uploads"`
}
