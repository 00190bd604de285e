package rediskey

import "fmt"

const (
	SessionRevokedPrefix = "session:revoked"
	SessionUserPrefix    = "session:user"
	RealtimeEmployee     = "realtime:employee"
	SequencePrefix       = "seq"
	CycleLockPrefix      = "detection:lock"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildSessionRevokedKey returns "session:revoked:{jti}"
func BuildSessionRevokedKey(jti string) string {
	return NamespaceKey(SessionRevokedPrefix, jti)
}

// BuildUserSessionsKey returns "session:user:{userID}", the set of live jtis
func BuildUserSessionsKey(userID string) string {
	return NamespaceKey(SessionUserPrefix, userID)
}

// BuildEmployeeChannel returns "realtime:employee:{employeeID}"
func BuildEmployeeChannel(employeeID string) string {
	return NamespaceKey(RealtimeEmployee, employeeID)
}

// BuildSequenceKey returns "seq:{prefix}:{scope}:{day}"
func BuildSequenceKey(prefix, scope, day string) string {
	return fmt.Sprintf("%s:%s:%s:%s", SequencePrefix, prefix, scope, day)
}

// BuildCycleLockKey returns "detection:lock:{companyID}"
func BuildCycleLockKey(companyID string) string {
	return NamespaceKey(CycleLockPrefix, companyID)
}
