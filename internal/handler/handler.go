// Package handler is the controller layer.
//
// It turns a transport-agnostic Request into exactly one Result: the input is
// run through the validation gate, the endpoint's operation calls the service
// layer under the request deadline, and any failure is mapped onto a status
// and a client-safe errs.Descriptor.
package handler
