package service

import (
	"fmt"
	"math/rand"
	"time"
)

// NewID returns {prefix}{epochMillis}{4 random digits}, e.g. ORD17283947561230042.
func NewID(prefix string) string {
	return fmt.Sprintf("%s%d%04d", prefix, time.Now().UnixMilli(), rand.Intn(10000))
}
