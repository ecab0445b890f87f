package identity

import (
	"sync"

	"github.com/rs/xid"
)

type Identity struct {
	serviceName string
	instanceID  string
}

var (
	identity = Identity{
		serviceName: "unknown",
		instanceID:  xid.New().String(),
	}
	setServiceNameOnce sync.Once
)

// WhoAmI returns the global identity information.
// serviceName defaults to "unknown" until set.
// instanceID uniquely identifies this execution and cannot be altered.
func WhoAmI() (serviceName, instanceID string) {
	return identity.serviceName, identity.instanceID
}

// SetServiceName sets the global service name. It can only be set once.
// Do not set the service name in tests - rely on the default value if needed.
func SetServiceName(name string) {
	setServiceNameOnce.Do(func() {
		identity.serviceName = name
	})
}
