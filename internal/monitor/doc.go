// Package monitor is the orchestration core of the PLC bridge.
//
// A Service ties together the controller Link, the device Registry, the
// bus sinks and the barcode trigger:
//
//	              ┌──────────────┐
//	  ticker ───► │  poll cycle  │──► Registry.Apply ──► Fanout ──► MQTT / ZeroMQ
//	              └──────┬───────┘          │
//	                     │                  └──► EdgeDetector ──► Trigger
//	                     ▼
//	                 plc.Link ◄──── write worker ◄──── HandleCommand ◄── bus .../set
//
// # Poll Cycle
//
// One goroutine ticks at a fixed interval. While the controller is
// disconnected each tick runs the bounded recovery policy instead of
// reading. A successful cycle resets the reconnect budget, feeds the edge
// detector and, only if some value changed, publishes the changed devices
// and emits SignalDeviceValuesChanged.
//
// # Inbound Commands
//
// HandleCommand validates in a fixed order: topic shape, address,
// whitelist, payload, type, liveness. Rejections are logged and recorded,
// never answered. Accepted writes go to a single worker so bus callbacks
// return immediately; the worker shares the poll cycle's mutex so a write
// never interleaves with a read cycle.
//
// # Signals
//
// Observers read Signals(). Emission never blocks: when the buffer is full
// the signal is dropped and logged. Delivery order matches emission order.
package monitor
