// Package errs defines the error taxonomy shared by every layer.
//
// Adapters translate backend-native errors into one of the kinds declared
// here, services wrap them with business context without changing the kind,
// and the controller maps the kind onto a transport status and a client-safe
// Descriptor.
//
//   - Keep one error shape from the adapter boundary to the client (JSON).
//   - Support field-level details for validation and conflict errors.
//   - Play nicely with errors.Is / errors.As and wrapping.
package errs
