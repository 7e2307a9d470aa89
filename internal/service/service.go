// Package service contains the business logic.
//
// It sits between the handler and repository layers. It receives validated
// input from the handler, enforces business rules a schema cannot express,
// and calls the capability interfaces without knowing which adapter is bound.
package service
