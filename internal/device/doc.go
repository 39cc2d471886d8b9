// Package device provides the Device Registry for the PLC bridge.
//
// The registry is the ordered, fixed-size catalogue of controller points the
// bridge monitors. It is built once from configuration at startup and its
// entries live for the whole run; only their values change.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                     Device Registry                      │
//	│                                                          │
//	│  ┌──────────────────┐        ┌──────────────────┐        │
//	│  │     Registry     │        │    Validation    │        │
//	│  │  (registry.go)   │        │ (validation.go)  │        │
//	│  │                  │        │                  │        │
//	│  │ • Ordered list   │        │ • Address checks │        │
//	│  │ • Change detect  │        │ • Type checks    │        │
//	│  │ • Topic cache    │        │ • Bit values     │        │
//	│  └──────────────────┘        └──────────────────┘        │
//	└──────────────────────────────────────────────────────────┘
//
// # Whitelist
//
// Address uniqueness doubles as the write whitelist: only addresses present
// in the registry may ever be written from an inbound command.
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Readers receive copies,
// so a snapshot never changes underneath the caller.
package device
