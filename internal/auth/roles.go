package auth

import "errors"

// permissions are strings like "scan:read_own", "admin:*"
const (
	PermScanReadOwn = "scan:read_own"
	PermScanReadAll = "scan:read_all"
	PermAdminAll    = "admin:*"
)

var roleToPerms = map[string][]string{
	"user":  {PermScanReadOwn},
	"admin": {PermScanReadAll, PermAdminAll},
}

func PermsForRoles(roles []string) map[string]struct{} {
	out := make(map[string]struct{}, 4)
	for _, r := range roles {
		if perms, ok := roleToPerms[r]; ok {
			for _, p := range perms {
				out[p] = struct{}{}
			}
		}
	}
	return out
}

var (
	ErrNoClaims  = errors.New("no claims in context")
	ErrBadIssuer = errors.New("unexpected token issuer")
)
