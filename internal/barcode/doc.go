// Package barcode drives a networked barcode reader over raw TCP.
//
// The reader accepts short ASCII commands; writing the trigger command
// (by default "+") makes it perform one scan. No response is read.
//
//	┌──────────────┐   TCP   ┌────────────────┐
//	│ plcbridge    │────────►│ barcode reader │
//	│ (Client)     │   "+"   │                │
//	└──────────────┘         └────────────────┘
//
// # Reconnection
//
// With AutoReconnect set, SendTrigger dials first when no connection is
// open. When a write fails the connection is dropped and a single
// background reconnect is scheduled after ReconnectDelay. Further
// failures while that reconnect is pending do not schedule more.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are serialised.
package barcode
