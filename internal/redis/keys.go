package redis

import "fmt"

const ns = "algotix:v1"

func KeyIdemCreate(creator, idemKey string) string {
	return fmt.Sprintf("%s:idem:create:%s:%s", ns, creator, idemKey)
}

func KeyIdemPurchase(buyer string, assetID uint64, idemKey string) string {
	return fmt.Sprintf("%s:idem:buy:%s:%d:%s", ns, buyer, assetID, idemKey)
}

// RateLimitPrefix namespaces the limiter's own keys.
const RateLimitPrefix = ns + ":rl"
