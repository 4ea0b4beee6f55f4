package types

import "encoding/json"

// SignupRequest is the JSON body accepted by the signup endpoint.
type SignupRequest struct {
	Email      string            `json:"email" validate:"required,email"`
	Attributes map[string]string `json:"attributes" validate:"required"`
	CardData   CardData          `json:"card_data" validate:"required"`
}

// CardData holds the raw card fields submitted with a signup. Expiration
// month and year accept either a JSON string or a JSON number.
type CardData struct {
	CardNumber      string      `json:"cardNumber" validate:"required,numeric,min=12,max=19"`
	ExpirationMonth json.Number `json:"expirationMonth" validate:"required"`
	ExpirationYear  json.Number `json:"expirationYear" validate:"required"`
	CCV             string      `json:"ccv" validate:"required,numeric,min=3,max=4"`
}

// ExpMonth returns the expiration month as an integer.
func (c CardData) ExpMonth() (int64, error) {
	return c.ExpirationMonth.Int64()
}

// ExpYear returns the expiration year as an integer.
func (c CardData) ExpYear() (int64, error) {
	return c.ExpirationYear.Int64()
}

// Last4 returns the last four digits of the card number, the only card
// detail that may appear in logs.
func (c CardData) Last4() string {
	if len(c.CardNumber) < 4 {
		return ""
	}
	return c.CardNumber[len(c.CardNumber)-4:]
}
