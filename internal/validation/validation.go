// Package validation is the gate every request passes before business logic.
//
// Schemas are data: YAML documents declaring, per field, a JSON type and a
// `validator` rule tag (like required fields or email formats). A schema
// turns raw request data into a *Input, or into a ValidationError listing
// every violated field in a format the client can understand.
package validation
