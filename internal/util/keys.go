package util

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// SpreadFraction is the upper bound of the random TTL extension added by Spread.
const SpreadFraction = 10 // percent

// Namespaced prefixes key with ns ("" => key unchanged).
func Namespaced(ns, key string) string {
	if ns == "" {
		return key
	}
	return ns + ":" + key
}

// Versioned prefixes key with a schema version so a layout change never reads
// entries written by an older binary. version <= 0 leaves key unchanged.
func Versioned(version int, key string) string {
	if version <= 0 {
		return key
	}
	return "v" + strconv.Itoa(version) + ":" + key
}

// GroupScoped narrows key to a single user/group.
func GroupScoped(key string, group int64) string {
	return key + ":group:" + strconv.FormatInt(group, 10)
}

// DependencyKey names the set of cache keys derived from entity type typ.
// Dependency keys are never versioned.
func DependencyKey(ns, typ string) string {
	return Namespaced(ns, "dependency::"+typ)
}

func GroupDependencyKey(ns, typ string, group int64) string {
	return GroupScoped(DependencyKey(ns, typ), group)
}

// DictKey is the per-id entry of a dictionary rooted at base.
func DictKey(base, id string) string { return base + "::" + id }

// DataKey is the remote buffer shared by instances that keep key in memory.
func DataKey(key string) string { return key + "::data" }

// LockKey guards loading of the remote buffer of key.
func LockKey(key string) string { return DataKey(key) + "::lock" }

// MarkerKey is the per-instance validity marker of a local entry. It starts
// with key so prefix resets of key also drop every marker.
func MarkerKey(key, instance string) string { return key + "/" + instance }

// Spread returns ttl extended by a random amount in [0, ttl*SpreadFraction/100]
// so keys written together do not expire together. ttl <= 0 is returned as is.
func Spread(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	max := int64(ttl) * SpreadFraction / 100
	if max <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int64N(max+1))
}

var globMeta = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// GlobEscape quotes Redis MATCH metacharacters so s matches literally.
func GlobEscape(s string) string { return globMeta.Replace(s) }
