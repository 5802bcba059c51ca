package domain

import "time"

type Review struct {
	ID          string
	ProductID   string
	ProductName string
	UserID      string
	Rating      int
	Comment     string
	CreatedAt   time.Time
}
