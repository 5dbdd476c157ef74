package domain

import "errors"

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidCountry  = errors.New("invalid_country")
	ErrInvalidTimezone = errors.New("invalid_timezone")
	ErrNotFound        = errors.New("company_not_found")
	ErrRateNotFound    = errors.New("exchange_rate_not_found")
)
