package enricher

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

// Fingerprint derives the cache key for a product from its identifier, title and
// details. Details are hashed in label order so map iteration cannot change the key.
func Fingerprint(p domain.Product) string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	write(p.ID)
	write(p.Title)

	labels := make([]string, 0, len(p.Details))
	for label := range p.Details {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		write(label)
		write(p.Details[label])
	}

	return hex.EncodeToString(h.Sum(nil))
}
