// Package provider defines the adapter contracts for chat and image
// backends. Adapters own request shaping and error mapping for their
// upstream; everything they return is expressed in chorus types
// ([ChatEvent], [Image], *api.Error), so the engine and the tool handlers
// never see provider payloads.
package provider
