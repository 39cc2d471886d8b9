// Package plc owns the session with the programmable controller.
//
// It provides:
//   - Status, the numeric result code every controller call returns
//   - Port, the register-level driver contract (open, close, read, write)
//   - Link, the connection state machine wrapped around a single Port
//   - ModbusPort, a Port for MELSEC-style device addresses over Modbus TCP
//
// # Connection State
//
// A Link is either Disconnected or Connected. Any read or write that returns
// a connection-lost status (timeout, link failure, not open) drops the Link
// to Disconnected immediately, even in the middle of a poll cycle.
//
// Automatic recovery is bounded. Recover is evaluated once per scheduler
// tick while disconnected: it reconnects at most once every
// ReconnectInterval and gives up after MaxReconnectAttempts consecutive
// failures. Once exhausted, only an explicit Connect resumes operation.
//
// # Thread Safety
//
// All Link transitions and register accesses share one mutex, so the poll
// loop and asynchronous writers never interleave on the controller session.
package plc
