package store

import (
	"strings"

	"ArgbRelay/module/relay/model"

	"go.uber.org/zap"
)

// toRoleSet drops unknown role names stored for a client and logs them.
func toRoleSet(log *zap.Logger, clientID string, names []string) model.RoleSet {
	set, unknown := model.ParseRoleSet(names)
	if len(unknown) > 0 {
		log.Warn("[Store] dropping unknown roles",
			zap.String("client", clientID),
			zap.String("roles", strings.Join(unknown, ",")))
	}
	return set
}
