package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID          int64           `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	Balance     decimal.Decimal `json:"balance"`
	CreditScore int             `json:"credit_score"`
	IsAdmin     bool            `json:"is_admin"`
	CreatedAt   time.Time       `json:"created_at"`
}

const CreditScoreReward = 10

// Identity is the authenticated caller taken from the bearer token.
type Identity struct {
	UserID int64
	Role   string
}

const RoleAdmin = "admin"

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
