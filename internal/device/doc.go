// Package device defines the narrow BLE transport surface the bridge depends on:
// an Adapter that scans and dials, and per-peer Client, Service and Characteristic
// handles. The production implementation lives in device/goble; tests substitute
// testify mocks from internal/testutils.
//
// Errors returned by implementations are normalized to the taxonomy in this package
// (NotFoundError, ConnectionError and the Err* sentinels) so callers can use errors.Is
// without knowing which stack produced them.
package device
