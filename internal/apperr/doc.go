// Package apperr defines the error taxonomy shared by the media pipeline,
// the image store and the HTTP transport.
//
// Each *Error carries a Code. Transports use MetadataFor to map a code to a
// status and decide whether the message may be shown to the caller;
// invariant violations and internal errors only ever expose a generic message.
package apperr
