package monitor

// SignalKind identifies an observable event.
type SignalKind int

// Signal kinds.
const (
	// SignalDeviceValuesChanged carries no payload.
	SignalDeviceValuesChanged SignalKind = iota + 1

	// SignalControllerConnection carries Connected.
	SignalControllerConnection

	// SignalPublisherState carries ZMQConnected and MQTTConnected.
	SignalPublisherState

	// SignalError carries Title and Message.
	SignalError

	// SignalAutoReconnectExhausted carries no payload. The poll loop has
	// halted and waits for an explicit Connect and Start.
	SignalAutoReconnectExhausted
)

// String implements fmt.Stringer.
func (k SignalKind) String() string {
	switch k {
	case SignalDeviceValuesChanged:
		return "device_values_changed"
	case SignalControllerConnection:
		return "controller_connection_changed"
	case SignalPublisherState:
		return "publisher_state_changed"
	case SignalError:
		return "error"
	case SignalAutoReconnectExhausted:
		return "auto_reconnect_exhausted"
	default:
		return "unknown"
	}
}

// Signal is one event raised to the host.
type Signal struct {
	Kind SignalKind

	Connected bool

	ZMQConnected  bool
	MQTTConnected bool

	Title   string
	Message string
}

func valuesChanged() Signal {
	return Signal{Kind: SignalDeviceValuesChanged}
}

func controllerConnection(connected bool) Signal {
	return Signal{Kind: SignalControllerConnection, Connected: connected}
}

func publisherState(zmq, mqtt bool) Signal {
	return Signal{Kind: SignalPublisherState, ZMQConnected: zmq, MQTTConnected: mqtt}
}

func errorSignal(title, message string) Signal {
	return Signal{Kind: SignalError, Title: title, Message: message}
}

func reconnectExhausted() Signal {
	return Signal{Kind: SignalAutoReconnectExhausted}
}
