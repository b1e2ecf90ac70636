// Package fault defines the failure taxonomy shared by the provisioning stack.
//
// Every failure the credential store, connection supervisor, captive portal and
// orchestrator can produce falls into one of six kinds:
//
//   - StorageUnavailable: the backing storage mount failed; fatal to Begin
//   - NoCredentials: the store is empty; triggers the portal
//   - ConnectionTimeout: one join attempt's bounded wait expired
//   - AllCredentialsExhausted: every stored network failed in one pass
//   - InvalidInput: an empty SSID was submitted; nothing is mutated
//   - PersistenceFailure: the record file could not be written; the in-memory
//     state is NOT reverted
//
// # Usage Example
//
//	if err := storage.Mount(); err != nil {
//	    return fault.Wrap(fault.StorageUnavailable, "provision.begin", err)
//	}
//
//	if fault.Is(err, fault.StorageUnavailable) {
//	    // halt
//	}
package fault
