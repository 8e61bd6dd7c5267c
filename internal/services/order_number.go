package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

var orderNumberSpace = big.NewInt(1000000)

// generateOrderNumber returns ORD + yyMMdd + six random digits. Collisions
// are caught by the unique index on orders.orderNumber.
func generateOrderNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, orderNumberSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD%s%06d", now.Format("060102"), n.Int64()), nil
}
