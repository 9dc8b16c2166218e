// Package api contains the PiService gRPC message types, service descriptor,
// and client stub. Messages are exchanged as JSON using the codec registered by
// this package.
package api
