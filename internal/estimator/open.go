package estimator

import (
	"fmt"
	"time"
)

// OracleAddr selects the in-process ground-truth estimator instead of a
// gRPC endpoint.
const OracleAddr = "oracle"

// Open returns the Oracle for OracleAddr and a gRPC client otherwise.
func Open(addr, device string, timeout time.Duration) (Estimator, error) {
	switch addr {
	case "":
		return nil, fmt.Errorf("estimator address is required")
	case OracleAddr:
		return NewOracle(), nil
	}
	return Dial(ClientConfig{Addr: addr, Device: device, Timeout: timeout})
}
