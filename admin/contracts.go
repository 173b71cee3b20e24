package admin

import (
	"net"

	"github.com/RogerFelipeNsk/crabcache/config"
)

// ConfigLoader loads a config.Config from whatever external source a
// deployment chooses (file, env, flags, service discovery). crabcache
// itself only consumes the validated result; spec §1/§6 name config-file
// loading as an external-collaborator concern, so only the contract lives
// here.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// Authenticator validates a client-presented token before a connection is
// allowed to issue commands. Never implemented in this repo: auth token
// validation is an explicit external collaborator per spec §1.
type Authenticator interface {
	Authenticate(token string) error
}

// RateLimiter decides whether a client identified by key may proceed,
// per the token-bucket scheme spec §1 calls out as external. Allow
// reports whether the request is admitted.
type RateLimiter interface {
	Allow(key string) bool
}

// ACL decides whether a remote address may connect at all, per the
// IP/CIDR ACL checks spec §1 lists as external collaborators.
type ACL interface {
	Permit(addr net.Addr) bool
}
