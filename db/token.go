package db

import "time"

// tokenRowID is the id of the only row in the tokens table. One session is stored at a time.
const tokenRowID = 1

// Token is the persisted session: the current access token and the refresh token paired with it.
type Token struct {
	ID           uint   `gorm:"primaryKey"`
	AccessToken  string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	UpdatedAt    time.Time
}
