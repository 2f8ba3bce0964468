package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateReference generates a unique reference for transactions dated at now
func GenerateReference(prefix string, now time.Time) string {
	result := make([]byte, 8)
	for i := range result {
		result[i] = referenceCharset[rand.Intn(len(referenceCharset))]
	}

	timestamp := now.UTC().Format("20060102")
	return fmt.Sprintf("%s_%s_%s", prefix, timestamp, string(result))
}

// SubscriptionReference mints the external reference of a renewal charge.
// It embeds the short subscription ID so gateway dashboards can be searched by tenant.
func SubscriptionReference(subscriptionID uuid.UUID, now time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(subscriptionID.String(), "-", "")[:8])
	return GenerateReference("SUB-"+short, now)
}
