package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID returns "<PREFIX>-<unix millis>-<8 random hex chars>".
// Uniqueness is probabilistic; callers needing a hard guarantee must rely on
// a storage-side unique key.
func GenerateID(prefix string) string {
	return GenerateIDAt(prefix, time.Now())
}

func GenerateIDAt(prefix string, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(prefix), at.UnixMilli(), strings.ToUpper(suffix))
}
